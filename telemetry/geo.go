package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"logisticsassist/api/models"
)

// Location is a coarse geolocation result.
type Location struct {
	City    string
	Country string
}

// UnknownLocation is used whenever enrichment fails or is skipped.
var UnknownLocation = Location{City: models.UnknownLocation, Country: models.UnknownLocation}

// GeoEnricher resolves an IP through an HTTP provider that answers with
// {"status","message","city","country"} (ip-api.com shape). urlTemplate
// contains one %s for the address.
type GeoEnricher struct {
	urlTemplate string
	client      *http.Client
	timeout     time.Duration
	logger      *log.Logger
}

func NewGeoEnricher(urlTemplate string, timeout time.Duration, logger *log.Logger) *GeoEnricher {
	return &GeoEnricher{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
		timeout:     timeout,
		logger:      logger,
	}
}

type geoResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Lookup queries the provider. Every error is a *Failure.
func (g *GeoEnricher) Lookup(ctx context.Context, ip string) (Location, error) {
	const step = "geo"
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == models.IPUnavailable {
		return UnknownLocation, fail(step, ReasonMissingInput, nil)
	}
	if g.urlTemplate == "" {
		return UnknownLocation, fail(step, ReasonNotConfigured, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(g.urlTemplate, url.PathEscape(ip)), nil)
	if err != nil {
		return UnknownLocation, fail(step, ReasonNotConfigured, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return UnknownLocation, transportFailure(step, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UnknownLocation, fail(step, ReasonBadStatus, fmt.Errorf("status %d", resp.StatusCode))
	}

	var body geoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLookupBody)).Decode(&body); err != nil {
		return UnknownLocation, transportOrMalformed(step, err)
	}
	if strings.EqualFold(body.Status, "fail") {
		return UnknownLocation, fail(step, ReasonMalformed, fmt.Errorf("provider: %s", body.Message))
	}

	loc := Location{City: strings.TrimSpace(body.City), Country: strings.TrimSpace(body.Country)}
	if loc.City == "" && loc.Country == "" {
		return UnknownLocation, fail(step, ReasonMalformed, fmt.Errorf("response has no city or country"))
	}
	if loc.City == "" {
		loc.City = models.UnknownLocation
	}
	if loc.Country == "" {
		loc.Country = models.UnknownLocation
	}
	return loc, nil
}

// Enrich is Lookup with every failure mapped to ("Unknown", "Unknown").
func (g *GeoEnricher) Enrich(ctx context.Context, ip string) (city, country string) {
	loc, err := g.Lookup(ctx, ip)
	if err != nil {
		if r := ReasonOf(err); r != ReasonMissingInput && r != ReasonNotConfigured {
			g.logger.Printf("geo enrichment failed: %v", err)
		}
		return models.UnknownLocation, models.UnknownLocation
	}
	return loc.City, loc.Country
}

// transportOrMalformed separates a body read cut short by the deadline from
// a body that is simply not JSON.
func transportOrMalformed(step string, err error) *Failure {
	if f := transportFailure(step, err); f.Reason == ReasonTimeout {
		return f
	}
	return fail(step, ReasonMalformed, err)
}
