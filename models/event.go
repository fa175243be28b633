// api/models/event.go
package models

import "time"

const (
	// IPUnavailable is stored when the visitor's address could not be resolved.
	IPUnavailable = "unavailable"
	// UnknownLocation is the city/country value when geolocation failed or was skipped.
	UnknownLocation = "Unknown"
)

// AccessEvent is one record per session that opened the tool.
// It is written once and never updated.
type AccessEvent struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	UserAgent *string   `json:"userAgent,omitempty"`
	Browser   *string   `json:"browser,omitempty"`
}

// CountResult is one row of a top-N aggregate over access events.
type CountResult struct {
	Value string `json:"value"`
	Count uint64 `json:"count"`
}
