package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
)

func newLifecycleFixture(drivers ...string) (LifecycleService, *memRepo, *fakeDispatcher) {
	repo := newMemRepo()
	dispatcher := &fakeDispatcher{}
	svc := NewLifecycleService(
		repo,
		NewFareService(),
		&fakeDirectory{drivers: drivers},
		dispatcher,
		&fakeSnapshots{},
		15*time.Minute,
		5.0,
	)
	return svc, repo, dispatcher
}

func createInput() *models.CreateRideRequestInput {
	return &models.CreateRideRequestInput{
		CustomerID:  uuid.New().String(),
		Pickup:      testPickup,
		Destination: testDestination,
		RideType:    models.RideTypeStandard,
	}
}

func TestCreateRideRequestSetsEstimateAndWindow(t *testing.T) {
	svc, _, dispatcher := newLifecycleFixture("driver-1", "driver-2")

	before := time.Now()
	req, err := svc.CreateRideRequest(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateRideRequest failed: %v", err)
	}

	if req.ID == "" {
		t.Error("ID not assigned")
	}
	if req.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", req.Status)
	}
	if req.Pricing.EstimatedFare <= 0 {
		t.Errorf("EstimatedFare = %v, want positive", req.Pricing.EstimatedFare)
	}
	if req.EstimatedMiles < 6.7 || req.EstimatedMiles > 7.1 {
		t.Errorf("EstimatedMiles = %v, want ~6.9", req.EstimatedMiles)
	}

	wantExpiry := before.Add(15 * time.Minute)
	if req.BiddingExpiresAt.Before(wantExpiry) || req.BiddingExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("BiddingExpiresAt = %v, want about %v", req.BiddingExpiresAt, wantExpiry)
	}

	if got := dispatcher.eventsOfType(notify.EventRequestCreated); len(got) != 2 {
		t.Errorf("broadcast to %d drivers, want 2", len(got))
	}
}

func TestCreateRideRequestWithInitialStops(t *testing.T) {
	svc, _, _ := newLifecycleFixture()

	in := createInput()
	in.Stops = []models.Location{
		{Lat: 40.03, Lng: -75.00, Address: "First stop"},
		{Lat: 40.06, Lng: -75.00, Address: "Second stop"},
	}

	req, err := svc.CreateRideRequest(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRideRequest failed: %v", err)
	}

	if len(req.Stops) != 2 {
		t.Fatalf("stops = %d, want 2", len(req.Stops))
	}
	for i, stop := range req.Stops {
		if stop.Order != i {
			t.Errorf("stop %d order = %d, want %d", i, stop.Order, i)
		}
		if stop.ID == "" {
			t.Errorf("stop %d has no ID", i)
		}
	}

	// On-path stops should not inflate the estimate.
	direct := NewFareService().EstimateFare(testPickup, testDestination, models.RideTypeStandard)
	if req.EstimatedMiles-direct.DistanceMiles > 0.05 {
		t.Errorf("EstimatedMiles = %v, want ~%v for on-path stops", req.EstimatedMiles, direct.DistanceMiles)
	}
}

func TestCreateRideRequestRejectsTooManyStops(t *testing.T) {
	svc, _, _ := newLifecycleFixture()

	in := createInput()
	for i := 0; i <= models.MaxStops; i++ {
		in.Stops = append(in.Stops, models.Location{Lat: 40.01 + float64(i)*0.01, Lng: -75.00})
	}

	_, err := svc.CreateRideRequest(context.Background(), in)
	if err == nil {
		t.Fatal("expected too many stops error")
	}
	if code := asAPIError(t, err).Code; code != "too_many_stops" {
		t.Errorf("error code = %s, want too_many_stops", code)
	}
}

func TestCreateRideRequestRejectsSecondActiveRequest(t *testing.T) {
	svc, _, _ := newLifecycleFixture()

	in := createInput()
	if _, err := svc.CreateRideRequest(context.Background(), in); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	_, err := svc.CreateRideRequest(context.Background(), in)
	if err == nil {
		t.Fatal("expected active ride error")
	}
	if code := asAPIError(t, err).Code; code != "active_ride_exists" {
		t.Errorf("error code = %s, want active_ride_exists", code)
	}
}

// Walks a request through its whole life: create, two competing bids,
// selection of the cheaper one, start, and completion with a final fare.
func TestFullRideScenario(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &fakeDispatcher{}
	snapshots := &fakeSnapshots{}
	lifecycle := NewLifecycleService(repo, NewFareService(), &fakeDirectory{drivers: []string{"driver-1", "driver-2"}}, dispatcher, snapshots, 15*time.Minute, 5.0)
	bidding := NewBiddingService(repo, dispatcher, snapshots)

	ctx := context.Background()
	req, err := lifecycle.CreateRideRequest(ctx, createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := bidding.SubmitBid(ctx, req.ID, bidInput("driver-1", 12.00)); err != nil {
		t.Fatalf("bid 1 failed: %v", err)
	}
	if _, err := bidding.SubmitBid(ctx, req.ID, bidInput("driver-2", 15.00)); err != nil {
		t.Fatalf("bid 2 failed: %v", err)
	}

	matched, err := bidding.SelectBid(ctx, req.ID, "driver-1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if matched.Status != models.StatusMatched {
		t.Fatalf("status = %s, want matched", matched.Status)
	}

	started, err := lifecycle.StartRide(ctx, req.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Status != models.StatusActive || started.StartedAt == nil {
		t.Fatalf("after start: status = %s, startedAt = %v", started.Status, started.StartedAt)
	}

	finalFare := 12.50
	done, err := lifecycle.CompleteRide(ctx, req.ID, &models.CompleteRideInput{FinalFare: &finalFare})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Status != models.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("after complete: status = %s, completedAt = %v", done.Status, done.CompletedAt)
	}
	if done.Pricing.FinalFare == nil || *done.Pricing.FinalFare != 12.50 {
		t.Errorf("FinalFare = %v, want 12.50", done.Pricing.FinalFare)
	}

	// The driver gets the completion event too.
	events := dispatcher.eventsOfType(notify.EventRideCompleted)
	if len(events) != 2 {
		t.Errorf("ride_completed events = %d, want rider and driver", len(events))
	}
}

func TestCompleteRideDefaultsFinalFareToEstimate(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	req := seedRequest(repo, models.StatusActive, 0)

	done, err := svc.CompleteRide(context.Background(), req.ID, &models.CompleteRideInput{})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Pricing.FinalFare == nil || *done.Pricing.FinalFare != req.Pricing.EstimatedFare {
		t.Errorf("FinalFare = %v, want estimate %v", done.Pricing.FinalFare, req.Pricing.EstimatedFare)
	}
}

func TestCompleteRideTwiceLeavesStateUnchanged(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	req := seedRequest(repo, models.StatusActive, 0)

	first := 12.50
	done, err := svc.CompleteRide(context.Background(), req.ID, &models.CompleteRideInput{FinalFare: &first})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	second := 99.99
	_, err = svc.CompleteRide(context.Background(), req.ID, &models.CompleteRideInput{FinalFare: &second})
	if err == nil {
		t.Fatal("expected invalid transition on double complete")
	}
	if code := asAPIError(t, err).Code; code != "invalid_transition" {
		t.Errorf("error code = %s, want invalid_transition", code)
	}

	stored, _ := repo.GetByID(context.Background(), req.ID)
	if stored.Pricing.FinalFare == nil || *stored.Pricing.FinalFare != 12.50 {
		t.Errorf("FinalFare after failed retry = %v, want unchanged 12.50", stored.Pricing.FinalFare)
	}
	if stored.Version != done.Version {
		t.Errorf("version moved from %d to %d on a rejected transition", done.Version, stored.Version)
	}
}

func TestStartRideRequiresMatch(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()

	for _, status := range []string{models.StatusPending, models.StatusBidding, models.StatusCompleted, models.StatusCancelled} {
		req := seedRequest(repo, status, 10*time.Minute)

		_, err := svc.StartRide(context.Background(), req.ID)
		if err == nil {
			t.Fatalf("status %s: expected start to be rejected", status)
		}
		if code := asAPIError(t, err).Code; code != "invalid_transition" {
			t.Errorf("status %s: error code = %s, want invalid_transition", status, code)
		}
	}
}

func TestCancelRideFromAnyLiveState(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()

	for _, status := range []string{models.StatusPending, models.StatusBidding, models.StatusMatched, models.StatusActive} {
		req := seedRequest(repo, status, 10*time.Minute)

		cancelled, err := svc.CancelRide(context.Background(), req.ID, &models.CancelRideInput{
			CancelledBy: models.CancelledByCustomer,
			Reason:      "changed my mind",
		})
		if err != nil {
			t.Fatalf("status %s: cancel failed: %v", status, err)
		}
		if cancelled.Status != models.StatusCancelled {
			t.Errorf("status %s: result = %s, want cancelled", status, cancelled.Status)
		}
		if cancelled.CancelledBy == nil || *cancelled.CancelledBy != models.CancelledByCustomer {
			t.Errorf("status %s: CancelledBy = %v, want customer", status, cancelled.CancelledBy)
		}
		if cancelled.CancelledAt == nil {
			t.Errorf("status %s: CancelledAt not stamped", status)
		}
	}
}

func TestCancelRideTerminalRejected(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()

	for _, status := range []string{models.StatusCompleted, models.StatusCancelled} {
		req := seedRequest(repo, status, 0)

		_, err := svc.CancelRide(context.Background(), req.ID, &models.CancelRideInput{CancelledBy: models.CancelledByDriver})
		if err == nil {
			t.Fatalf("status %s: expected cancel to be rejected", status)
		}
		if code := asAPIError(t, err).Code; code != "invalid_transition" {
			t.Errorf("status %s: error code = %s, want invalid_transition", status, code)
		}
	}
}

func TestGetRideRequestNotFound(t *testing.T) {
	svc, _, _ := newLifecycleFixture()

	_, err := svc.GetRideRequest(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected not found")
	}
	if code := asAPIError(t, err).Code; code != "not_found" {
		t.Errorf("error code = %s, want not_found", code)
	}
}
