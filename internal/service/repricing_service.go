package service

import (
	"context"
	"errors"
	"math"
	"time"

	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/repository"
	"github.com/suntan-superman/rydeiqweb-sub004/pkg/utils"
)

// RepricingPolicy is the guardrail configuration: what counts as a small
// (auto-acceptable) delta and what counts as too disruptive to price
// without a fresh bidding round. Values are tunable policy, not law.
type RepricingPolicy struct {
	StopWaitMinutes       int
	AutoApplyFareDelta    float64
	AutoApplyMinutesDelta int
	NewBidFareDelta       float64
	NewBidMinutesDelta    int
	MaxStops              int
}

type RepricingService interface {
	CalculateStopDelta(ctx context.Context, requestID string, stop models.Location) (*models.StopDelta, error)
	AddStopToRide(ctx context.Context, requestID string, in *models.AddStopInput) (*models.AddStopResult, error)
}

type repricingService struct {
	repo       repository.RideRequestRepository
	fare       FareService
	dispatcher notify.Dispatcher
	snapshots  notify.SnapshotPublisher
	policy     RepricingPolicy
}

func NewRepricingService(
	repo repository.RideRequestRepository,
	fare FareService,
	dispatcher notify.Dispatcher,
	snapshots notify.SnapshotPublisher,
	policy RepricingPolicy,
) RepricingService {
	if policy.MaxStops <= 0 {
		policy.MaxStops = models.MaxStops
	}
	return &repricingService{
		repo:       repo,
		fare:       fare,
		dispatcher: dispatcher,
		snapshots:  snapshots,
		policy:     policy,
	}
}

func (s *repricingService) CalculateStopDelta(ctx context.Context, requestID string, stop models.Location) (*models.StopDelta, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound("ride request")
	}
	if req.IsTerminal() {
		return nil, apperrors.NotModifiable(req.Status)
	}

	return s.computeDelta(req, stop), nil
}

// computeDelta appends the new stop to the end of the current stop
// sequence and reprices the route with the tariff chosen at creation.
// No optimal reordering is attempted.
func (s *repricingService) computeDelta(req *models.RideRequest, stop models.Location) *models.StopDelta {
	currentRoute := req.Route()

	newRoute := make([]models.Location, 0, len(currentRoute)+1)
	newRoute = append(newRoute, currentRoute[:len(currentRoute)-1]...)
	newRoute = append(newRoute, stop, req.Destination())

	currentMiles := s.fare.RouteMiles(currentRoute)
	newMiles := s.fare.RouteMiles(newRoute)
	deltaMiles := math.Max(0, newMiles-currentMiles)

	currentMinutes := s.fare.EstimateMinutes(currentMiles)
	newMinutes := s.fare.EstimateMinutes(newMiles)
	deltaDriveMinutes := newMinutes - currentMinutes
	if deltaDriveMinutes < 0 {
		deltaDriveMinutes = 0
	}
	deltaMinutes := deltaDriveMinutes + s.policy.StopWaitMinutes

	deltaFare := s.fare.FareForDelta(req.RideType, deltaMiles, deltaMinutes)

	delta := &models.StopDelta{
		Calc: models.DeltaCalc{
			DeltaMiles:       math.Round(deltaMiles*100) / 100,
			DeltaMinutes:     deltaMinutes,
			DeltaWaitMinutes: s.policy.StopWaitMinutes,
		},
		DeltaFare:       deltaFare,
		NewRoute:        newRoute,
		NewRouteMiles:   math.Round(newMiles*100) / 100,
		NewRouteMinutes: newMinutes + s.policy.StopWaitMinutes,
	}

	// Classification is monotone in magnitude: a larger delta never
	// yields a less restrictive action than a smaller one.
	switch {
	case deltaFare >= s.policy.NewBidFareDelta || deltaMinutes >= s.policy.NewBidMinutesDelta:
		delta.SuggestedAction = models.ActionRequestNewBid
	case deltaFare < s.policy.AutoApplyFareDelta && deltaMinutes < s.policy.AutoApplyMinutesDelta:
		delta.SuggestedAction = models.ActionAutoApply
		delta.RiderAutoAccept = true
		delta.DriverAutoAccept = true
	default:
		delta.SuggestedAction = models.ActionRequiresApproval
		delta.RequiresApproval = true
	}

	return delta
}

func (s *repricingService) AddStopToRide(ctx context.Context, requestID string, in *models.AddStopInput) (*models.AddStopResult, error) {
	var result *models.AddStopResult

	// Own retry loop rather than mutateRequest: a guardrail hold is a
	// first-class outcome that must return without saving, and a retry
	// must recompute the delta against the fresh snapshot.
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, apperrors.NotFound("ride request")
		}
		if req.IsTerminal() {
			return nil, apperrors.NotModifiable(req.Status)
		}

		// The delta is always recomputed here; deltas supplied by the
		// caller are never trusted.
		delta := s.computeDelta(req, in.Stop)

		if delta.SuggestedAction == models.ActionRequestNewBid && !in.AcceptNewBidPrice {
			return &models.AddStopResult{
				RequiresNewBid: true,
				Delta:          delta,
			}, nil
		}
		if delta.RequiresApproval && !in.ForceApprove && !in.AcceptNewBidPrice {
			return &models.AddStopResult{
				RequiresApproval: true,
				Delta:            delta,
			}, nil
		}

		if len(req.Stops) >= s.policy.MaxStops {
			return nil, apperrors.TooManyStops(s.policy.MaxStops)
		}

		now := time.Now()
		approved := true
		req.Stops = append(req.Stops, models.Stop{
			ID:          newStopID(),
			Address:     in.Stop.Address,
			Coordinates: in.Stop,
			Order:       len(req.Stops),
			AddedAt:     now,
		})
		req.Pricing.Adjustments = append(req.Pricing.Adjustments, models.PricingAdjustment{
			Kind:           models.AdjustmentAddStop,
			Calc:           delta.Calc,
			SuggestedDelta: delta.DeltaFare,
			RiderApproved:  &approved,
			DriverApproved: &approved,
			Timestamp:      now,
		})
		req.Pricing.EstimatedFare = math.Round((req.Pricing.EstimatedFare+delta.DeltaFare)*100) / 100
		req.EstimatedMiles = delta.NewRouteMiles
		req.EstimatedMinutes = delta.NewRouteMinutes

		err = s.repo.Save(ctx, req)
		if err == nil {
			result = &models.AddStopResult{
				Applied: true,
				Delta:   delta,
				Request: req,
			}
			break
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
	}

	if result == nil {
		return nil, apperrors.ConcurrentModification()
	}

	req := result.Request
	payload := map[string]interface{}{
		"delta_fare":     result.Delta.DeltaFare,
		"estimated_fare": req.Pricing.EstimatedFare,
		"stop_count":     len(req.Stops),
	}
	s.dispatcher.Notify(notify.Event{
		Type:          notify.EventStopAdded,
		RideRequestID: req.ID,
		RecipientID:   req.CustomerID,
		Payload:       payload,
	})
	if req.SelectedDriverID != nil {
		s.dispatcher.Notify(notify.Event{
			Type:          notify.EventStopAdded,
			RideRequestID: req.ID,
			RecipientID:   *req.SelectedDriverID,
			Payload:       payload,
		})
	}
	s.snapshots.Publish(ctx, req)

	return result, nil
}

func newStopID() string {
	return utils.NewID()
}
