package models

import "time"

// UsageData represents a single day's electricity usage of one meter
type UsageData struct {
	ID    int       `json:"id"`
	Meter string    `json:"meter"` // "{type} - {id}", e.g. "ELECTRIC - 123456"
	Date  time.Time `json:"date"`
	KWh   float64   `json:"kwh"`
}

// MeterRecord is a meter discovered on the account
type MeterRecord struct {
	Number    string    `json:"number"`
	Type      string    `json:"type"`
	MeterID   string    `json:"meter_id"`
	StartDate string    `json:"start_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BillingSnapshot is the latest billing period of a meter as returned by the portal
type BillingSnapshot struct {
	ID        int            `json:"id"`
	Meter     string         `json:"meter"`
	FetchedAt time.Time      `json:"fetched_at"`
	Payload   map[string]any `json:"payload"`
}
