package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
)

// memRepo is an in-memory RideRequestRepository with the same
// compare-and-swap semantics as the Postgres implementation.
type memRepo struct {
	mu       sync.Mutex
	requests map[string]*models.RideRequest
}

func newMemRepo() *memRepo {
	return &memRepo{requests: make(map[string]*models.RideRequest)}
}

func cloneRequest(req *models.RideRequest) *models.RideRequest {
	data, _ := json.Marshal(req)
	var out models.RideRequest
	_ = json.Unmarshal(data, &out)
	return &out
}

func (r *memRepo) Create(_ context.Context, req *models.RideRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(req), nil
}

func (r *memRepo) Save(_ context.Context, req *models.RideRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.requests[req.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if stored.Version != req.Version {
		return apperrors.ErrVersionConflict
	}
	req.Version++
	req.UpdatedAt = time.Now()
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *memRepo) GetActiveByCustomerID(_ context.Context, customerID string) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.CustomerID == customerID && !req.IsTerminal() {
			return cloneRequest(req), nil
		}
	}
	return nil, nil
}

// fakeDispatcher records events instead of publishing them.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *fakeDispatcher) Notify(event notify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *fakeDispatcher) Close() error { return nil }

func (d *fakeDispatcher) eventsOfType(eventType string) []notify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeSnapshots counts snapshot publishes.
type fakeSnapshots struct {
	mu    sync.Mutex
	count int
}

func (s *fakeSnapshots) Publish(_ context.Context, _ *models.RideRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
}

// fakeDirectory returns a fixed set of nearby drivers.
type fakeDirectory struct {
	drivers []string
}

func (d *fakeDirectory) UpdateLocation(_ context.Context, _ string, _, _ float64) error { return nil }
func (d *fakeDirectory) Remove(_ context.Context, _ string) error                       { return nil }
func (d *fakeDirectory) FindNearby(_ context.Context, _, _, _ float64) ([]string, error) {
	return d.drivers, nil
}

// Test coordinates: roughly a 6.9 mile straight shot north.
var (
	testPickup      = models.Location{Lat: 40.00, Lng: -75.00, Address: "100 Origin St"}
	testDestination = models.Location{Lat: 40.10, Lng: -75.00, Address: "900 Terminus Ave"}
)

func seedRequest(repo *memRepo, status string, expiresIn time.Duration) *models.RideRequest {
	fare := NewFareService()
	estimate := fare.EstimateFare(testPickup, testDestination, models.RideTypeStandard)

	req := &models.RideRequest{
		CustomerID:       uuid.New().String(),
		PickupLat:        testPickup.Lat,
		PickupLng:        testPickup.Lng,
		DestinationLat:   testDestination.Lat,
		DestinationLng:   testDestination.Lng,
		RideType:         models.RideTypeStandard,
		Status:           status,
		Stops:            models.StopList{},
		DriverBids:       models.BidMap{},
		EstimatedMiles:   estimate.DistanceMiles,
		EstimatedMinutes: estimate.DurationMinutes,
		Pricing: models.Pricing{
			EstimatedFare: estimate.Fare,
			Adjustments:   []models.PricingAdjustment{},
		},
		BiddingExpiresAt: time.Now().Add(expiresIn),
	}
	_ = repo.Create(context.Background(), req)
	return req
}

func defaultTestPolicy() RepricingPolicy {
	return RepricingPolicy{
		StopWaitMinutes:       3,
		AutoApplyFareDelta:    2.0,
		AutoApplyMinutesDelta: 5,
		NewBidFareDelta:       10.0,
		NewBidMinutesDelta:    20,
		MaxStops:              models.MaxStops,
	}
}
