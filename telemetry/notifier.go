package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"logisticsassist/api/models"
)

// TelegramNotifier posts a one-line alert to a Telegram chat through the
// Bot API. With no token or chat id it reports ReasonNotConfigured and
// sends nothing.
type TelegramNotifier struct {
	apiURL  string
	token   string
	chatID  string
	client  *http.Client
	timeout time.Duration
}

func NewTelegramNotifier(apiURL, token, chatID string, timeout time.Duration) *TelegramNotifier {
	return &TelegramNotifier{
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (n *TelegramNotifier) Enabled() bool {
	return n.token != "" && n.chatID != ""
}

// FormatAccessMessage renders the alert text for ev.
func FormatAccessMessage(ev models.AccessEvent) string {
	msg := fmt.Sprintf("New visit to Logistics Assist: IP %s from %s, %s", ev.IP, ev.City, ev.Country)
	if ev.Browser != nil && *ev.Browser != "" && *ev.Browser != BrowserUnknown {
		msg += " using " + *ev.Browser
	}
	return msg
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (n *TelegramNotifier) Notify(ctx context.Context, ev models.AccessEvent) error {
	const step = "notify"
	if !n.Enabled() {
		return fail(step, ReasonNotConfigured, nil)
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: n.chatID, Text: FormatAccessMessage(ev)})
	if err != nil {
		return fail(step, ReasonMalformed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fail(step, ReasonNotConfigured, n.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return transportFailure(step, n.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(step, ReasonBadStatus, n.redact(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))))
	}
	return nil
}

const redactedToken = "<redacted>"

// redact strips the bot token, which is part of the request path, from err.
func (n *TelegramNotifier) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, n.token, redactedToken)
		return err
	}
	if strings.Contains(err.Error(), n.token) {
		return errors.New(strings.ReplaceAll(err.Error(), n.token, redactedToken))
	}
	return err
}
