package models

import "time"

// Scenario is a named customer situation from the static catalog.
type Scenario struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Steps        []string `json:"steps" yaml:"steps"`
	MocaTemplate string   `json:"mocaTemplate" yaml:"moca_template"`
}

// InteractionRecord is a saved scenario walkthrough. Steps holds the checklist
// text as it was when the record was saved.
type InteractionRecord struct {
	ID           int64     `json:"id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Category     string    `json:"category"`
	Steps        []string  `json:"steps"`
	MocaTemplate string    `json:"mocaTemplate"`
	Notes        string    `json:"notes"`
}

type SaveInteractionRequest struct {
	Category string `json:"category" binding:"required"`
	Notes    string `json:"notes"`
}

// AccessBeaconRequest carries identity values echoed back by the client.
type AccessBeaconRequest struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}
