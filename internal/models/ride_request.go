package models

import (
	"time"
)

// Ride request status constants
const (
	StatusPending   = "pending"
	StatusBidding   = "bidding"
	StatusMatched   = "matched"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Ride types (tariff selectors)
const (
	RideTypeStandard    = "standard"
	RideTypePremium     = "premium"
	RideTypeWheelchair  = "wheelchair"
	RideTypePetFriendly = "pet_friendly"
)

// Cancellation actors
const (
	CancelledByCustomer = "customer"
	CancelledByDriver   = "driver"
)

// Valid ride request state transitions. Status is the single source of
// truth; it is never re-derived from bid or stop counts.
var ValidTransitions = map[string][]string{
	StatusPending:   {StatusBidding, StatusMatched, StatusCancelled},
	StatusBidding:   {StatusMatched, StatusCancelled},
	StatusMatched:   {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// MaxStops caps the stop list of a single ride request.
const MaxStops = 5

// Location is a geographic point. Coordinates are validated by range
// only; 0.0 is a legitimate latitude (equator) and longitude (prime
// meridian), so presence cannot be inferred from a non-zero value.
type Location struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address,omitempty"`
}

// RideRequest is the aggregate root: one rider's request, its competing
// driver bids, its stop list and its priced history. Stops, bids and
// pricing travel as JSONB columns; version backs compare-and-swap saves.
type RideRequest struct {
	ID                 string     `db:"id" json:"id"`
	CustomerID         string     `db:"customer_id" json:"customer_id"`
	SelectedDriverID   *string    `db:"selected_driver_id" json:"selected_driver_id,omitempty"`
	PickupLat          float64    `db:"pickup_lat" json:"pickup_lat"`
	PickupLng          float64    `db:"pickup_lng" json:"pickup_lng"`
	PickupAddress      *string    `db:"pickup_address" json:"pickup_address,omitempty"`
	DestinationLat     float64    `db:"destination_lat" json:"destination_lat"`
	DestinationLng     float64    `db:"destination_lng" json:"destination_lng"`
	DestinationAddress *string    `db:"destination_address" json:"destination_address,omitempty"`
	RideType           string     `db:"ride_type" json:"ride_type"`
	Status             string     `db:"status" json:"status"`
	Stops              StopList   `db:"stops" json:"stops"`
	DriverBids         BidMap     `db:"driver_bids" json:"driver_bids"`
	Pricing            Pricing    `db:"pricing" json:"pricing"`
	EstimatedMiles     float64    `db:"estimated_miles" json:"estimated_miles"`
	EstimatedMinutes   int        `db:"estimated_minutes" json:"estimated_minutes"`
	ActualMiles        *float64   `db:"actual_miles" json:"actual_miles,omitempty"`
	ActualMinutes      *int       `db:"actual_minutes" json:"actual_minutes,omitempty"`
	RoutePolyline      *string    `db:"route_polyline" json:"route_polyline,omitempty"`
	BiddingExpiresAt   time.Time  `db:"bidding_expires_at" json:"bidding_expires_at"`
	ScheduledTime      *time.Time `db:"scheduled_time" json:"scheduled_time,omitempty"`
	CancelledBy        *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	MatchedAt          *time.Time `db:"matched_at" json:"matched_at,omitempty"`
	StartedAt          *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	Version            int64      `db:"version" json:"version"`
}

type CreateRideRequestInput struct {
	CustomerID    string     `json:"customer_id" validate:"required,uuid"`
	Pickup        Location   `json:"pickup" validate:"required"`
	Destination   Location   `json:"destination" validate:"required"`
	RideType      string     `json:"ride_type" validate:"required,oneof=standard premium wheelchair pet_friendly"`
	Stops         []Location `json:"stops,omitempty" validate:"omitempty,max=5,dive"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

type CompleteRideInput struct {
	FinalFare       *float64 `json:"final_fare,omitempty" validate:"omitempty,gt=0"`
	Tip             *float64 `json:"tip,omitempty" validate:"omitempty,gte=0"`
	DistanceMiles   *float64 `json:"distance_miles,omitempty" validate:"omitempty,gte=0"`
	DurationMinutes *int     `json:"duration_minutes,omitempty" validate:"omitempty,gte=0"`
	RoutePolyline   *string  `json:"route_polyline,omitempty"`
}

type CancelRideInput struct {
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by" validate:"required,oneof=customer driver"`
}

// Pickup returns the pickup point as a Location.
func (r *RideRequest) Pickup() Location {
	loc := Location{Lat: r.PickupLat, Lng: r.PickupLng}
	if r.PickupAddress != nil {
		loc.Address = *r.PickupAddress
	}
	return loc
}

// Destination returns the final destination as a Location.
func (r *RideRequest) Destination() Location {
	loc := Location{Lat: r.DestinationLat, Lng: r.DestinationLng}
	if r.DestinationAddress != nil {
		loc.Address = *r.DestinationAddress
	}
	return loc
}

// Route returns pickup, the current stops in order, then the destination.
func (r *RideRequest) Route() []Location {
	route := make([]Location, 0, len(r.Stops)+2)
	route = append(route, r.Pickup())
	for _, s := range r.Stops {
		route = append(route, s.Coordinates)
	}
	return append(route, r.Destination())
}

// CanTransitionTo checks whether the request may move to newStatus.
func (r *RideRequest) CanTransitionTo(newStatus string) bool {
	for _, next := range ValidTransitions[r.Status] {
		if next == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the request reached a final state.
func (r *RideRequest) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// BiddingOpen reports whether a bid may still be submitted or selected:
// the request must sit in pending or bidding and the window must not
// have elapsed.
func (r *RideRequest) BiddingOpen(now time.Time) bool {
	if r.Status != StatusPending && r.Status != StatusBidding {
		return false
	}
	return !now.After(r.BiddingExpiresAt)
}

func IsValidRideType(rt string) bool {
	switch rt {
	case RideTypeStandard, RideTypePremium, RideTypeWheelchair, RideTypePetFriendly:
		return true
	}
	return false
}
