package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/suntan-superman/rydeiqweb-sub004/internal/cache"
	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/repository"
)

// maxSaveRetries bounds the optimistic read-modify-write loop. Contention
// is scoped to a single ride request, so conflicts are rare and short.
const maxSaveRetries = 3

// mutateRequest loads the request, applies mutate, and saves with a
// compare-and-swap. On a version conflict it re-reads and re-applies so
// no mutation is ever computed against a stale snapshot.
func mutateRequest(ctx context.Context, repo repository.RideRequestRepository, id string, mutate func(*models.RideRequest) error) (*models.RideRequest, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		req, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, apperrors.NotFound("ride request")
		}

		if err := mutate(req); err != nil {
			return nil, err
		}

		err = repo.Save(ctx, req)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, apperrors.ConcurrentModification()
}

type LifecycleService interface {
	CreateRideRequest(ctx context.Context, in *models.CreateRideRequestInput) (*models.RideRequest, error)
	GetRideRequest(ctx context.Context, id string) (*models.RideRequest, error)
	StartRide(ctx context.Context, id string) (*models.RideRequest, error)
	CompleteRide(ctx context.Context, id string, in *models.CompleteRideInput) (*models.RideRequest, error)
	CancelRide(ctx context.Context, id string, in *models.CancelRideInput) (*models.RideRequest, error)
}

type lifecycleService struct {
	repo            repository.RideRequestRepository
	fare            FareService
	directory       cache.DriverDirectory
	dispatcher      notify.Dispatcher
	snapshots       notify.SnapshotPublisher
	biddingWindow   time.Duration
	broadcastRadius float64
}

func NewLifecycleService(
	repo repository.RideRequestRepository,
	fare FareService,
	directory cache.DriverDirectory,
	dispatcher notify.Dispatcher,
	snapshots notify.SnapshotPublisher,
	biddingWindow time.Duration,
	broadcastRadius float64,
) LifecycleService {
	return &lifecycleService{
		repo:            repo,
		fare:            fare,
		directory:       directory,
		dispatcher:      dispatcher,
		snapshots:       snapshots,
		biddingWindow:   biddingWindow,
		broadcastRadius: broadcastRadius,
	}
}

func (s *lifecycleService) CreateRideRequest(ctx context.Context, in *models.CreateRideRequestInput) (*models.RideRequest, error) {
	active, err := s.repo.GetActiveByCustomerID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.ActiveRideExists()
	}

	if len(in.Stops) > models.MaxStops {
		return nil, apperrors.TooManyStops(models.MaxStops)
	}

	now := time.Now()
	req := &models.RideRequest{
		CustomerID:       in.CustomerID,
		PickupLat:        in.Pickup.Lat,
		PickupLng:        in.Pickup.Lng,
		DestinationLat:   in.Destination.Lat,
		DestinationLng:   in.Destination.Lng,
		RideType:         in.RideType,
		Status:           models.StatusPending,
		ScheduledTime:    in.ScheduledTime,
		BiddingExpiresAt: now.Add(s.biddingWindow),
	}
	if in.Pickup.Address != "" {
		req.PickupAddress = &in.Pickup.Address
	}
	if in.Destination.Address != "" {
		req.DestinationAddress = &in.Destination.Address
	}

	stops := make(models.StopList, 0, len(in.Stops))
	for i, loc := range in.Stops {
		stops = append(stops, models.Stop{
			ID:          newStopID(),
			Address:     loc.Address,
			Coordinates: loc,
			Order:       i,
			AddedAt:     now,
		})
	}
	req.Stops = stops

	estimate := s.fare.EstimateRoute(req.Route(), req.RideType)
	req.EstimatedMiles = estimate.DistanceMiles
	req.EstimatedMinutes = estimate.DurationMinutes
	req.Pricing = models.Pricing{
		EstimatedFare: estimate.Fare,
		Adjustments:   []models.PricingAdjustment{},
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.broadcastToNearbyDrivers(ctx, req)
	s.snapshots.Publish(ctx, req)

	return req, nil
}

// broadcastToNearbyDrivers fans the new request out to eligible bidders.
// Directory or dispatch failures are logged and never fail the creation.
func (s *lifecycleService) broadcastToNearbyDrivers(ctx context.Context, req *models.RideRequest) {
	drivers, err := s.directory.FindNearby(ctx, req.PickupLat, req.PickupLng, s.broadcastRadius)
	if err != nil {
		log.Printf("failed to find nearby drivers for request %s: %v", req.ID, err)
		return
	}

	for _, driverID := range drivers {
		s.dispatcher.Notify(notify.Event{
			Type:          notify.EventRequestCreated,
			RideRequestID: req.ID,
			RecipientID:   driverID,
			Payload: map[string]interface{}{
				"ride_type":          req.RideType,
				"pickup_lat":         req.PickupLat,
				"pickup_lng":         req.PickupLng,
				"estimated_fare":     req.Pricing.EstimatedFare,
				"bidding_expires_at": req.BiddingExpiresAt,
			},
		})
	}
}

func (s *lifecycleService) GetRideRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound("ride request")
	}
	return req, nil
}

func (s *lifecycleService) StartRide(ctx context.Context, id string) (*models.RideRequest, error) {
	req, err := mutateRequest(ctx, s.repo, id, func(req *models.RideRequest) error {
		if !req.CanTransitionTo(models.StatusActive) {
			return apperrors.InvalidTransition(req.Status, models.StatusActive)
		}
		now := time.Now()
		req.Status = models.StatusActive
		req.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyParties(req, notify.EventRideStarted, nil)
	s.snapshots.Publish(ctx, req)
	return req, nil
}

func (s *lifecycleService) CompleteRide(ctx context.Context, id string, in *models.CompleteRideInput) (*models.RideRequest, error) {
	req, err := mutateRequest(ctx, s.repo, id, func(req *models.RideRequest) error {
		if !req.CanTransitionTo(models.StatusCompleted) {
			return apperrors.InvalidTransition(req.Status, models.StatusCompleted)
		}
		now := time.Now()
		req.Status = models.StatusCompleted
		req.CompletedAt = &now

		// Completion data overrides the estimate but never touches the
		// already-recorded pricing adjustments.
		if in.FinalFare != nil {
			req.Pricing.FinalFare = in.FinalFare
		} else {
			fare := req.Pricing.EstimatedFare
			req.Pricing.FinalFare = &fare
		}
		if in.Tip != nil {
			req.Pricing.Tip = in.Tip
		}
		if in.DistanceMiles != nil {
			req.ActualMiles = in.DistanceMiles
		}
		if in.DurationMinutes != nil {
			req.ActualMinutes = in.DurationMinutes
		}
		if in.RoutePolyline != nil {
			req.RoutePolyline = in.RoutePolyline
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyParties(req, notify.EventRideCompleted, map[string]interface{}{
		"final_fare": req.Pricing.FinalFare,
	})
	s.snapshots.Publish(ctx, req)
	return req, nil
}

func (s *lifecycleService) CancelRide(ctx context.Context, id string, in *models.CancelRideInput) (*models.RideRequest, error) {
	req, err := mutateRequest(ctx, s.repo, id, func(req *models.RideRequest) error {
		if !req.CanTransitionTo(models.StatusCancelled) {
			return apperrors.InvalidTransition(req.Status, models.StatusCancelled)
		}
		now := time.Now()
		req.Status = models.StatusCancelled
		req.CancelledAt = &now
		req.CancelledBy = &in.CancelledBy
		if in.Reason != "" {
			req.CancellationReason = &in.Reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyParties(req, notify.EventRideCancelled, map[string]interface{}{
		"cancelled_by": in.CancelledBy,
		"reason":       in.Reason,
	})
	s.snapshots.Publish(ctx, req)
	return req, nil
}

// notifyParties emits an event to the rider and, when matched, the driver.
func (s *lifecycleService) notifyParties(req *models.RideRequest, eventType string, payload map[string]interface{}) {
	s.dispatcher.Notify(notify.Event{
		Type:          eventType,
		RideRequestID: req.ID,
		RecipientID:   req.CustomerID,
		Payload:       payload,
	})
	if req.SelectedDriverID != nil {
		s.dispatcher.Notify(notify.Event{
			Type:          eventType,
			RideRequestID: req.ID,
			RecipientID:   *req.SelectedDriverID,
			Payload:       payload,
		})
	}
}
