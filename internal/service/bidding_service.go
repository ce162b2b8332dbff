package service

import (
	"context"
	"time"

	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/repository"
)

type BiddingService interface {
	SubmitBid(ctx context.Context, requestID string, in *models.SubmitBidInput) (*models.RideRequest, error)
	SelectBid(ctx context.Context, requestID, driverID string) (*models.RideRequest, error)
	AcceptDefaultOffer(ctx context.Context, requestID string) (*models.RideRequest, error)
}

type biddingService struct {
	repo       repository.RideRequestRepository
	dispatcher notify.Dispatcher
	snapshots  notify.SnapshotPublisher
}

func NewBiddingService(
	repo repository.RideRequestRepository,
	dispatcher notify.Dispatcher,
	snapshots notify.SnapshotPublisher,
) BiddingService {
	return &biddingService{
		repo:       repo,
		dispatcher: dispatcher,
		snapshots:  snapshots,
	}
}

func (s *biddingService) SubmitBid(ctx context.Context, requestID string, in *models.SubmitBidInput) (*models.RideRequest, error) {
	req, err := mutateRequest(ctx, s.repo, requestID, func(req *models.RideRequest) error {
		if !req.BiddingOpen(time.Now()) {
			return apperrors.BiddingClosed()
		}

		if req.DriverBids == nil {
			req.DriverBids = models.BidMap{}
		}

		// One live bid per driver: resubmission replaces the prior bid.
		req.DriverBids[in.DriverID] = models.Bid{
			DriverID:                in.DriverID,
			BidAmount:               in.BidAmount,
			EstimatedArrivalMinutes: in.EstimatedArrivalMinutes,
			Message:                 in.Message,
			VehicleInfo:             in.VehicleInfo,
			BidTime:                 time.Now(),
		}

		if req.Status == models.StatusPending {
			req.Status = models.StatusBidding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(notify.Event{
		Type:          notify.EventBidSubmitted,
		RideRequestID: req.ID,
		RecipientID:   req.CustomerID,
		Payload: map[string]interface{}{
			"driver_id":  in.DriverID,
			"bid_amount": in.BidAmount,
			"eta_mins":   in.EstimatedArrivalMinutes,
		},
	})
	s.snapshots.Publish(ctx, req)

	return req, nil
}

func (s *biddingService) SelectBid(ctx context.Context, requestID, driverID string) (*models.RideRequest, error) {
	var selected models.Bid

	req, err := mutateRequest(ctx, s.repo, requestID, func(req *models.RideRequest) error {
		if !req.BiddingOpen(time.Now()) {
			return apperrors.BiddingClosed()
		}

		bid, ok := req.DriverBids[driverID]
		if !ok {
			return apperrors.UnknownDriver(driverID)
		}
		selected = bid

		now := time.Now()
		req.SelectedDriverID = &bid.DriverID
		req.Status = models.StatusMatched
		req.MatchedAt = &now

		// The chosen bid becomes the agreed price for the trip.
		req.Pricing.EstimatedFare = bid.BidAmount
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(notify.Event{
		Type:          notify.EventBidSelected,
		RideRequestID: req.ID,
		RecipientID:   selected.DriverID,
		Payload: map[string]interface{}{
			"bid_amount": selected.BidAmount,
		},
	})
	for id := range req.DriverBids {
		if id == selected.DriverID {
			continue
		}
		s.dispatcher.Notify(notify.Event{
			Type:          notify.EventBidRejected,
			RideRequestID: req.ID,
			RecipientID:   id,
		})
	}
	s.snapshots.Publish(ctx, req)

	return req, nil
}

// AcceptDefaultOffer is the explicit pending→matched fast path: the rider
// takes the standing estimate before any driver has bid. A driver is
// assigned afterwards by dispatch, outside this core.
func (s *biddingService) AcceptDefaultOffer(ctx context.Context, requestID string) (*models.RideRequest, error) {
	req, err := mutateRequest(ctx, s.repo, requestID, func(req *models.RideRequest) error {
		if req.Status != models.StatusPending {
			return apperrors.InvalidTransition(req.Status, models.StatusMatched)
		}
		if time.Now().After(req.BiddingExpiresAt) {
			return apperrors.BiddingClosed()
		}

		now := time.Now()
		req.Status = models.StatusMatched
		req.MatchedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(notify.Event{
		Type:          notify.EventOfferAccepted,
		RideRequestID: req.ID,
		RecipientID:   req.CustomerID,
		Payload: map[string]interface{}{
			"estimated_fare": req.Pricing.EstimatedFare,
		},
	})
	s.snapshots.Publish(ctx, req)

	return req, nil
}
