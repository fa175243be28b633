package telemetry

import "strings"

const (
	BrowserUnknown = "Unknown"
	BrowserOther   = "Other"
)

type browserRule struct {
	label  string
	tokens []string
}

// browserRules is evaluated top to bottom and the first match wins.
//
// The order is load-bearing. Edge, Opera, Samsung, Yandex, Vivaldi, Brave and
// UC all embed "chrome" and "safari" in their user agents, Chromium embeds
// "chrome", and Chrome embeds "safari". Each vendor rule must therefore sit
// above every engine token it carries.
var browserRules = []browserRule{
	{label: "Edge", tokens: []string{"edg"}},
	{label: "Opera", tokens: []string{"opr/", "opera"}},
	{label: "Samsung Internet", tokens: []string{"samsungbrowser"}},
	{label: "Yandex", tokens: []string{"yabrowser"}},
	{label: "Vivaldi", tokens: []string{"vivaldi"}},
	{label: "Brave", tokens: []string{"brave"}},
	{label: "UC Browser", tokens: []string{"ucbrowser"}},
	{label: "Firefox", tokens: []string{"firefox", "fxios"}},
	{label: "Chromium", tokens: []string{"chromium"}},
	{label: "Chrome", tokens: []string{"chrome", "crios"}},
	{label: "Safari", tokens: []string{"safari"}},
	{label: "Internet Explorer", tokens: []string{"msie", "trident"}},
}

// ClassifyBrowser maps a user agent to a coarse browser label. An empty
// user agent is "Unknown"; one that matches no rule is "Other".
func ClassifyBrowser(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return BrowserUnknown
	}
	for _, r := range browserRules {
		for _, tok := range r.tokens {
			if strings.Contains(ua, tok) {
				return r.label
			}
		}
	}
	return BrowserOther
}
