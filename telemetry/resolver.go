package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// maxLookupBody caps how much of an identity or geo response is read.
const maxLookupBody = 16 << 10

// IdentityRequest is everything the HTTP layer knows about the visitor.
// Empty strings mean "not available".
type IdentityRequest struct {
	RemoteIP   string // from the connection (gin ClientIP)
	UserAgent  string // from the User-Agent header
	ReportedIP string // echoed back by the client, if any
	ReportedUA string
}

// Identity is the best-effort result of resolution. Empty fields are absent.
type Identity struct {
	IP        string
	UserAgent string
}

// Resolver picks the visitor's address and user agent. Only a loopback
// connection, where visitor and server share a host, is resolved through the
// external "what is my IP" service; from any other peer that service would
// report the server's own egress address.
type Resolver struct {
	lookupURL string
	client    *http.Client
	timeout   time.Duration
	logger    *log.Logger
}

func NewResolver(lookupURL string, timeout time.Duration, logger *log.Logger) *Resolver {
	return &Resolver{
		lookupURL: lookupURL,
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve never fails; missing values come back empty.
func (r *Resolver) Resolve(ctx context.Context, req IdentityRequest) Identity {
	id := Identity{
		UserAgent: firstNonEmpty(req.ReportedUA, req.UserAgent),
	}

	if ip := validIP(req.ReportedIP); ip != nil {
		id.IP = ip.String()
		return id
	}

	remote := validIP(req.RemoteIP)
	if remote != nil && isPublic(remote) {
		id.IP = remote.String()
		return id
	}

	if remote != nil && remote.IsLoopback() {
		if ip, err := r.lookupPublicIP(ctx); err == nil {
			id.IP = ip
			return id
		} else if ReasonOf(err) != ReasonNotConfigured {
			r.logger.Printf("identity lookup failed: %v", err)
		}
	}

	if remote != nil {
		id.IP = remote.String()
	}
	return id
}

func (r *Resolver) lookupPublicIP(ctx context.Context) (string, error) {
	const step = "identity"
	if r.lookupURL == "" {
		return "", fail(step, ReasonNotConfigured, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.lookupURL, nil)
	if err != nil {
		return "", fail(step, ReasonNotConfigured, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", transportFailure(step, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fail(step, ReasonBadStatus, fmt.Errorf("status %d", resp.StatusCode))
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLookupBody)).Decode(&body); err != nil {
		return "", fail(step, ReasonMalformed, err)
	}
	ip := validIP(body.IP)
	if ip == nil {
		return "", fail(step, ReasonMalformed, fmt.Errorf("invalid ip %q", body.IP))
	}
	return ip.String(), nil
}

func validIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// IsPublicIP reports whether s parses as a globally routable address.
func IsPublicIP(s string) bool {
	ip := validIP(s)
	return ip != nil && isPublic(ip)
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
