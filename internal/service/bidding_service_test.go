package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
)

func newBiddingFixture() (BiddingService, *memRepo, *fakeDispatcher) {
	repo := newMemRepo()
	dispatcher := &fakeDispatcher{}
	svc := NewBiddingService(repo, dispatcher, &fakeSnapshots{})
	return svc, repo, dispatcher
}

func bidInput(driverID string, amount float64) *models.SubmitBidInput {
	return &models.SubmitBidInput{
		DriverID:                driverID,
		BidAmount:               amount,
		EstimatedArrivalMinutes: 5,
		VehicleInfo:             models.VehicleInfo{Make: "Honda", Model: "Civic"},
	}
}

func asAPIError(t *testing.T, err error) *apperrors.APIError {
	t.Helper()
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	return apiErr
}

func TestSubmitFirstBidMovesPendingToBidding(t *testing.T) {
	svc, repo, _ := newBiddingFixture()
	req := seedRequest(repo, models.StatusPending, 10*time.Minute)

	updated, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 12.00))
	if err != nil {
		t.Fatalf("SubmitBid failed: %v", err)
	}

	if updated.Status != models.StatusBidding {
		t.Errorf("status = %s, want bidding", updated.Status)
	}
	if len(updated.DriverBids) != 1 {
		t.Errorf("DriverBids size = %d, want 1", len(updated.DriverBids))
	}
}

func TestResubmitReplacesDriversPriorBid(t *testing.T) {
	svc, repo, _ := newBiddingFixture()
	req := seedRequest(repo, models.StatusPending, 10*time.Minute)

	if _, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 15.00)); err != nil {
		t.Fatalf("first bid failed: %v", err)
	}
	updated, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 11.00))
	if err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}

	if len(updated.DriverBids) != 1 {
		t.Fatalf("DriverBids size = %d, want exactly one live bid", len(updated.DriverBids))
	}
	if got := updated.DriverBids["driver-1"].BidAmount; got != 11.00 {
		t.Errorf("live bid amount = %v, want the second amount 11.00", got)
	}
}

func TestSubmitBidAfterDeadlineRejected(t *testing.T) {
	svc, repo, _ := newBiddingFixture()

	for _, status := range []string{models.StatusPending, models.StatusBidding} {
		req := seedRequest(repo, status, -time.Minute)

		_, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 12.00))
		if err == nil {
			t.Fatalf("status %s: expected error for expired window", status)
		}
		if code := asAPIError(t, err).Code; code != "bidding_closed" {
			t.Errorf("status %s: error code = %s, want bidding_closed", status, code)
		}
	}
}

func TestSubmitBidOutsideBiddingStatesRejected(t *testing.T) {
	svc, repo, _ := newBiddingFixture()

	for _, status := range []string{models.StatusMatched, models.StatusActive, models.StatusCompleted, models.StatusCancelled} {
		req := seedRequest(repo, status, 10*time.Minute)

		_, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 12.00))
		if err == nil {
			t.Fatalf("status %s: expected bid to be rejected", status)
		}
		if code := asAPIError(t, err).Code; code != "bidding_closed" {
			t.Errorf("status %s: error code = %s, want bidding_closed", status, code)
		}
	}
}

func TestSubmitBidUnknownRequest(t *testing.T) {
	svc, _, _ := newBiddingFixture()

	_, err := svc.SubmitBid(context.Background(), "no-such-id", bidInput("driver-1", 12.00))
	if err == nil {
		t.Fatal("expected not found error")
	}
	if code := asAPIError(t, err).Code; code != "not_found" {
		t.Errorf("error code = %s, want not_found", code)
	}
}

func TestSelectBidMatchesRequest(t *testing.T) {
	svc, repo, dispatcher := newBiddingFixture()
	req := seedRequest(repo, models.StatusPending, 10*time.Minute)

	ctx := context.Background()
	if _, err := svc.SubmitBid(ctx, req.ID, bidInput("driver-1", 12.00)); err != nil {
		t.Fatalf("bid 1 failed: %v", err)
	}
	if _, err := svc.SubmitBid(ctx, req.ID, bidInput("driver-2", 15.00)); err != nil {
		t.Fatalf("bid 2 failed: %v", err)
	}

	updated, err := svc.SelectBid(ctx, req.ID, "driver-1")
	if err != nil {
		t.Fatalf("SelectBid failed: %v", err)
	}

	if updated.Status != models.StatusMatched {
		t.Errorf("status = %s, want matched", updated.Status)
	}
	if updated.SelectedDriverID == nil || *updated.SelectedDriverID != "driver-1" {
		t.Errorf("SelectedDriverID = %v, want driver-1", updated.SelectedDriverID)
	}
	if updated.MatchedAt == nil {
		t.Error("MatchedAt not stamped")
	}
	if updated.Pricing.EstimatedFare != 12.00 {
		t.Errorf("EstimatedFare = %v, want the chosen bid amount 12.00", updated.Pricing.EstimatedFare)
	}

	if got := dispatcher.eventsOfType(notify.EventBidSelected); len(got) != 1 || got[0].RecipientID != "driver-1" {
		t.Errorf("bid_selected events = %+v, want exactly one to driver-1", got)
	}
	if got := dispatcher.eventsOfType(notify.EventBidRejected); len(got) != 1 || got[0].RecipientID != "driver-2" {
		t.Errorf("bid_rejected events = %+v, want exactly one to driver-2", got)
	}
}

func TestSelectBidUnknownDriver(t *testing.T) {
	svc, repo, _ := newBiddingFixture()
	req := seedRequest(repo, models.StatusPending, 10*time.Minute)

	if _, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 12.00)); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	_, err := svc.SelectBid(context.Background(), req.ID, "driver-99")
	if err == nil {
		t.Fatal("expected unknown driver error")
	}
	if code := asAPIError(t, err).Code; code != "unknown_driver" {
		t.Errorf("error code = %s, want unknown_driver", code)
	}
}

func TestSelectBidAfterDeadlineRejected(t *testing.T) {
	svc, repo, _ := newBiddingFixture()
	req := seedRequest(repo, models.StatusBidding, -time.Minute)

	_, err := svc.SelectBid(context.Background(), req.ID, "driver-1")
	if err == nil {
		t.Fatal("expected bidding closed error")
	}
	if code := asAPIError(t, err).Code; code != "bidding_closed" {
		t.Errorf("error code = %s, want bidding_closed", code)
	}
}

func TestAcceptDefaultOfferFromPending(t *testing.T) {
	svc, repo, _ := newBiddingFixture()
	req := seedRequest(repo, models.StatusPending, 10*time.Minute)

	updated, err := svc.AcceptDefaultOffer(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("AcceptDefaultOffer failed: %v", err)
	}

	if updated.Status != models.StatusMatched {
		t.Errorf("status = %s, want matched", updated.Status)
	}
	if updated.SelectedDriverID != nil {
		t.Errorf("SelectedDriverID = %v, want nil until dispatch assigns one", updated.SelectedDriverID)
	}
	if updated.MatchedAt == nil {
		t.Error("MatchedAt not stamped")
	}
}

func TestAcceptDefaultOfferRejectedOnceBidding(t *testing.T) {
	svc, repo, _ := newBiddingFixture()
	req := seedRequest(repo, models.StatusPending, 10*time.Minute)

	if _, err := svc.SubmitBid(context.Background(), req.ID, bidInput("driver-1", 12.00)); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	_, err := svc.AcceptDefaultOffer(context.Background(), req.ID)
	if err == nil {
		t.Fatal("expected invalid transition once bids exist")
	}
	if code := asAPIError(t, err).Code; code != "invalid_transition" {
		t.Errorf("error code = %s, want invalid_transition", code)
	}
}
