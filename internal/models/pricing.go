package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Adjustment kinds
const (
	AdjustmentAddStop = "add_stop"
)

// PricingAdjustment is one immutable audit entry in the priced history of
// a ride. Adjustments are append-only; they are never edited or removed.
type PricingAdjustment struct {
	Kind              string    `json:"kind"`
	Calc              DeltaCalc `json:"calc"`
	SuggestedDelta    float64   `json:"suggested_delta"`
	DriverEditedDelta *float64  `json:"driver_edited_delta,omitempty"`
	RiderApproved     *bool     `json:"rider_approved"`
	DriverApproved    *bool     `json:"driver_approved"`
	Timestamp         time.Time `json:"timestamp"`
}

// Pricing carries the live fare picture of a request: the current
// estimate, the settled fare once completed, and the adjustment trail.
type Pricing struct {
	EstimatedFare float64             `json:"estimated_fare"`
	FinalFare     *float64            `json:"final_fare,omitempty"`
	Tip           *float64            `json:"tip,omitempty"`
	Adjustments   []PricingAdjustment `json:"adjustments"`
}

func (p Pricing) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Pricing) Scan(src interface{}) error {
	return scanJSON(src, p)
}
