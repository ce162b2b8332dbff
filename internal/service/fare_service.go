package service

import (
	"math"

	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
)

// Tariff holds the rate card for one ride type.
type Tariff struct {
	BaseFare    float64
	PerMileRate float64
	PerMinRate  float64
	MinimumFare float64
}

var tariffs = map[string]Tariff{
	models.RideTypeStandard:    {BaseFare: 2.50, PerMileRate: 1.75, PerMinRate: 0.30, MinimumFare: 7.00},
	models.RideTypePremium:     {BaseFare: 5.00, PerMileRate: 2.75, PerMinRate: 0.50, MinimumFare: 12.00},
	models.RideTypeWheelchair:  {BaseFare: 3.50, PerMileRate: 2.00, PerMinRate: 0.40, MinimumFare: 9.00},
	models.RideTypePetFriendly: {BaseFare: 3.00, PerMileRate: 1.85, PerMinRate: 0.35, MinimumFare: 8.00},
}

// minutesPerMile is the fixed duration heuristic. It is an approximation,
// not a routing-engine call; callers must treat the result as an estimate.
const minutesPerMile = 2.0

// FareEstimate is the pure output of the estimator: great-circle route
// distance in miles, heuristic duration, and the tariff fare.
type FareEstimate struct {
	DistanceMiles   float64 `json:"distance_miles"`
	DurationMinutes int     `json:"duration_minutes"`
	Fare            float64 `json:"fare"`
}

type FareService interface {
	EstimateFare(origin, destination models.Location, rideType string) FareEstimate
	EstimateRoute(route []models.Location, rideType string) FareEstimate
	RouteMiles(route []models.Location) float64
	EstimateMinutes(miles float64) int
	FareForDelta(rideType string, deltaMiles float64, deltaMinutes int) float64
}

type fareService struct{}

func NewFareService() FareService {
	return &fareService{}
}

func (s *fareService) EstimateFare(origin, destination models.Location, rideType string) FareEstimate {
	return s.EstimateRoute([]models.Location{origin, destination}, rideType)
}

// EstimateRoute prices a full route: pickup, stops in order, destination.
func (s *fareService) EstimateRoute(route []models.Location, rideType string) FareEstimate {
	tariff := tariffFor(rideType)

	miles := s.RouteMiles(route)
	minutes := s.EstimateMinutes(miles)

	fare := tariff.BaseFare + miles*tariff.PerMileRate + float64(minutes)*tariff.PerMinRate
	if fare < tariff.MinimumFare {
		fare = tariff.MinimumFare
	}

	return FareEstimate{
		DistanceMiles:   roundMiles(miles),
		DurationMinutes: minutes,
		Fare:            roundCents(fare),
	}
}

// RouteMiles sums the great-circle leg distances of a route.
func (s *fareService) RouteMiles(route []models.Location) float64 {
	var total float64
	for i := 1; i < len(route); i++ {
		total += haversineMiles(route[i-1].Lat, route[i-1].Lng, route[i].Lat, route[i].Lng)
	}
	return total
}

// EstimateMinutes converts distance into the heuristic trip duration.
func (s *fareService) EstimateMinutes(miles float64) int {
	if miles <= 0 {
		return 0
	}
	return int(math.Ceil(miles * minutesPerMile))
}

// FareForDelta prices a route change: marginal miles and minutes at the
// tariff rates, with no base fare and no minimum-fare clamp.
func (s *fareService) FareForDelta(rideType string, deltaMiles float64, deltaMinutes int) float64 {
	tariff := tariffFor(rideType)
	return roundCents(deltaMiles*tariff.PerMileRate + float64(deltaMinutes)*tariff.PerMinRate)
}

func tariffFor(rideType string) Tariff {
	if t, ok := tariffs[rideType]; ok {
		return t
	}
	return tariffs[models.RideTypeStandard]
}

// haversineMiles calculates the great-circle distance between two points
func haversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusMiles = 3958.8

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

func roundCents(f float64) float64 {
	return math.Round(f*100) / 100
}

func roundMiles(f float64) float64 {
	return math.Round(f*100) / 100
}
