package models

import "time"

// StationView is one row of the stations diagnostic listing: a Station
// flattened for display, with per-fuel prices and retailer branding attached.
type StationView struct {
	Station
	Retailer *Retailer `json:"retailer,omitempty"`
}

type StationListResponse struct {
	Instance    string        `json:"instance"`
	Key         StationKey    `json:"key"`
	Stations    []StationView `json:"stations"`
	Attribution []string      `json:"attribution"`
	LastUpdated *time.Time    `json:"last_updated,omitempty"`
}

type AggregateResponse struct {
	Instance      string           `json:"instance"`
	Aggregate     *AggregateResult `json:"aggregate,omitempty"`
	Stale         bool             `json:"stale"`
	LastSuccessAt *time.Time       `json:"last_success_at,omitempty"`
	Attribution   []string         `json:"attribution"`
}
