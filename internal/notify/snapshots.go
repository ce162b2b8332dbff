package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
)

// SnapshotChannel carries full RideRequest snapshots for live watchers.
const SnapshotChannel = "ride:requests:updates"

// SnapshotPublisher pushes a fresh RideRequest snapshot after every
// committed mutation so SSE watchers see state changes without polling.
type SnapshotPublisher interface {
	Publish(ctx context.Context, req *models.RideRequest)
}

type redisSnapshotPublisher struct {
	redis *redis.Client
}

func NewSnapshotPublisher(redisClient *redis.Client) SnapshotPublisher {
	return &redisSnapshotPublisher{redis: redisClient}
}

func (p *redisSnapshotPublisher) Publish(ctx context.Context, req *models.RideRequest) {
	data, err := json.Marshal(req)
	if err != nil {
		log.Printf("snapshots: failed to encode request %s: %v", req.ID, err)
		return
	}
	if err := p.redis.Publish(ctx, SnapshotChannel, data).Err(); err != nil {
		log.Printf("snapshots: failed to publish request %s: %v", req.ID, err)
	}
}
