package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Stop is an intermediate waypoint between pickup and the final
// destination. Order is dense and matches the stop's position in the
// request's stop list, which is also the route order.
type Stop struct {
	ID          string    `json:"id"`
	Address     string    `json:"address,omitempty"`
	Coordinates Location  `json:"coordinates"`
	Order       int       `json:"order"`
	Completed   bool      `json:"completed"`
	AddedAt     time.Time `json:"added_at"`
}

// StopList is the ordered stop sequence, stored as a JSONB column.
type StopList []Stop

func (l StopList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StopList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

type AddStopInput struct {
	Stop Location `json:"stop" validate:"required"`

	// ForceApprove asserts that rider and driver approved the computed
	// delta out-of-band, releasing a requires_approval hold.
	ForceApprove bool `json:"force_approve,omitempty"`

	// AcceptNewBidPrice overrides the request_new_bid guardrail and
	// applies the delta at the suggested price anyway.
	AcceptNewBidPrice bool `json:"accept_new_bid_price,omitempty"`
}

// Suggested actions for a computed stop delta, ordered from least to
// most restrictive.
const (
	ActionAutoApply        = "auto_apply"
	ActionRequiresApproval = "requires_approval"
	ActionRequestNewBid    = "request_new_bid"
)

// DeltaCalc is the raw route math behind a stop insertion.
type DeltaCalc struct {
	DeltaMiles       float64 `json:"delta_miles"`
	DeltaMinutes     int     `json:"delta_minutes"`
	DeltaWaitMinutes int     `json:"delta_wait_minutes"`
}

// StopDelta is the priced, classified outcome of inserting one stop at
// the end of the current route.
type StopDelta struct {
	Calc             DeltaCalc  `json:"calc"`
	DeltaFare        float64    `json:"delta_fare"`
	NewRoute         []Location `json:"new_route"`
	NewRouteMiles    float64    `json:"new_route_miles"`
	NewRouteMinutes  int        `json:"new_route_minutes"`
	SuggestedAction  string     `json:"suggested_action"`
	RiderAutoAccept  bool       `json:"rider_auto_accept"`
	DriverAutoAccept bool       `json:"driver_auto_accept"`
	RequiresApproval bool       `json:"requires_approval"`
}

// AddStopResult reports what AddStopToRide did. When the guardrail held
// the change, Applied is false and the flags plus Delta tell the caller
// what approval is missing; the request itself is untouched.
type AddStopResult struct {
	Applied          bool         `json:"applied"`
	RequiresApproval bool         `json:"requires_approval"`
	RequiresNewBid   bool         `json:"requires_new_bid"`
	Delta            *StopDelta   `json:"delta"`
	Request          *RideRequest `json:"request,omitempty"`
}
