package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	driverGeoKey     = "drivers:geo"
	driverSeenPrefix = "drivers:seen:"
	driverSeenTTL    = 5 * time.Minute
)

// DriverDirectory answers "which drivers are near this pickup" so a new
// request can be broadcast to eligible bidders. It is advisory only: a
// missing or stale entry never blocks the request lifecycle.
type DriverDirectory interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearby(ctx context.Context, lat, lng, radiusMiles float64) ([]string, error)
	Remove(ctx context.Context, driverID string) error
}

type driverDirectory struct {
	redis *redis.Client
}

func NewDriverDirectory(redisClient *redis.Client) DriverDirectory {
	return &driverDirectory{redis: redisClient}
}

func (d *driverDirectory) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if err := d.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err(); err != nil {
		return err
	}

	// Liveness marker; FindNearby skips drivers whose marker lapsed.
	return d.redis.Set(ctx, driverSeenPrefix+driverID, 1, driverSeenTTL).Err()
}

func (d *driverDirectory) FindNearby(ctx context.Context, lat, lng, radiusMiles float64) ([]string, error) {
	locations, err := d.redis.GeoRadius(ctx, driverGeoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusMiles,
		Unit:   "mi",
		Count:  50,
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	drivers := make([]string, 0, len(locations))
	for _, loc := range locations {
		alive, err := d.redis.Exists(ctx, driverSeenPrefix+loc.Name).Result()
		if err != nil || alive == 0 {
			continue
		}
		drivers = append(drivers, loc.Name)
	}

	return drivers, nil
}

func (d *driverDirectory) Remove(ctx context.Context, driverID string) error {
	if err := d.redis.ZRem(ctx, driverGeoKey, driverID).Err(); err != nil {
		return err
	}
	return d.redis.Del(ctx, driverSeenPrefix+driverID).Err()
}
