package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
)

type RideRequestRepository interface {
	Create(ctx context.Context, req *models.RideRequest) error
	GetByID(ctx context.Context, id string) (*models.RideRequest, error)
	// Save persists the full mutable state of a request with an
	// optimistic compare-and-swap on version. A stale snapshot yields
	// apperrors.ErrVersionConflict and no write.
	Save(ctx context.Context, req *models.RideRequest) error
	GetActiveByCustomerID(ctx context.Context, customerID string) (*models.RideRequest, error)
}

type rideRequestRepository struct {
	db *sqlx.DB
}

func NewRideRequestRepository(db *sqlx.DB) RideRequestRepository {
	return &rideRequestRepository{db: db}
}

func (r *rideRequestRepository) Create(ctx context.Context, req *models.RideRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Version = 1
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if req.Stops == nil {
		req.Stops = models.StopList{}
	}
	if req.DriverBids == nil {
		req.DriverBids = models.BidMap{}
	}

	query := `
		INSERT INTO ride_requests (id, customer_id, selected_driver_id,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			ride_type, status, stops, driver_bids, pricing,
			estimated_miles, estimated_minutes, bidding_expires_at, scheduled_time,
			created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.CustomerID, req.SelectedDriverID,
		req.PickupLat, req.PickupLng, req.PickupAddress,
		req.DestinationLat, req.DestinationLng, req.DestinationAddress,
		req.RideType, req.Status, req.Stops, req.DriverBids, req.Pricing,
		req.EstimatedMiles, req.EstimatedMinutes, req.BiddingExpiresAt, req.ScheduledTime,
		req.CreatedAt, req.UpdatedAt, req.Version)
	return err
}

func (r *rideRequestRepository) GetByID(ctx context.Context, id string) (*models.RideRequest, error) {
	var req models.RideRequest
	query := `SELECT * FROM ride_requests WHERE id = $1`
	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}

func (r *rideRequestRepository) Save(ctx context.Context, req *models.RideRequest) error {
	req.UpdatedAt = time.Now()

	query := `
		UPDATE ride_requests
		SET selected_driver_id = $1, status = $2, stops = $3, driver_bids = $4,
			pricing = $5, estimated_miles = $6, estimated_minutes = $7,
			actual_miles = $8, actual_minutes = $9, route_polyline = $10,
			cancelled_by = $11, cancellation_reason = $12,
			matched_at = $13, started_at = $14, completed_at = $15, cancelled_at = $16,
			updated_at = $17, version = version + 1
		WHERE id = $18 AND version = $19
	`
	res, err := r.db.ExecContext(ctx, query,
		req.SelectedDriverID, req.Status, req.Stops, req.DriverBids,
		req.Pricing, req.EstimatedMiles, req.EstimatedMinutes,
		req.ActualMiles, req.ActualMinutes, req.RoutePolyline,
		req.CancelledBy, req.CancellationReason,
		req.MatchedAt, req.StartedAt, req.CompletedAt, req.CancelledAt,
		req.UpdatedAt, req.ID, req.Version)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrVersionConflict
	}

	req.Version++
	return nil
}

func (r *rideRequestRepository) GetActiveByCustomerID(ctx context.Context, customerID string) (*models.RideRequest, error) {
	var req models.RideRequest
	query := `
		SELECT * FROM ride_requests
		WHERE customer_id = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &req, query, customerID, models.StatusCompleted, models.StatusCancelled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}
