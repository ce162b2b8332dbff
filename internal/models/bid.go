package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// VehicleInfo is a snapshot of the bidding driver's vehicle, captured at
// bid time so later profile edits don't rewrite bid history.
type VehicleInfo struct {
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Color       string `json:"color,omitempty"`
	PlateNumber string `json:"plate_number,omitempty"`
}

// Bid is one driver's live offer on a request. A driver holds at most one
// bid per request; resubmitting replaces the previous one.
type Bid struct {
	DriverID                string      `json:"driver_id"`
	BidAmount               float64     `json:"bid_amount"`
	EstimatedArrivalMinutes int         `json:"estimated_arrival_minutes"`
	Message                 string      `json:"message,omitempty"`
	VehicleInfo             VehicleInfo `json:"vehicle_info"`
	BidTime                 time.Time   `json:"bid_time"`
}

type SubmitBidInput struct {
	DriverID                string      `json:"driver_id" validate:"required,uuid"`
	BidAmount               float64     `json:"bid_amount" validate:"required,gt=0"`
	EstimatedArrivalMinutes int         `json:"estimated_arrival_minutes" validate:"gte=0"`
	Message                 string      `json:"message,omitempty" validate:"omitempty,max=500"`
	VehicleInfo             VehicleInfo `json:"vehicle_info"`
}

type SelectBidInput struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
}

// BidMap keys live bids by driver ID. Stored as a JSONB column.
type BidMap map[string]Bid

func (m BidMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *BidMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported source type for jsonb column")
	}
}
