package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/atomic"
)

// Event types emitted after a state transition commits.
const (
	EventRequestCreated = "ride_request_created"
	EventBidSubmitted   = "bid_submitted"
	EventBidSelected    = "bid_selected"
	EventBidRejected    = "bid_rejected"
	EventOfferAccepted  = "default_offer_accepted"
	EventRideStarted    = "ride_started"
	EventRideCompleted  = "ride_completed"
	EventRideCancelled  = "ride_cancelled"
	EventStopAdded      = "stop_added"
)

// Event is one fire-and-forget notification for one recipient. The core
// commits state first and then hands the event to the dispatcher; dispatch
// failure is logged, never retried here, and never rolls anything back.
type Event struct {
	Type          string                 `json:"type"`
	RideRequestID string                 `json:"ride_request_id"`
	RecipientID   string                 `json:"recipient_id"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

type Dispatcher interface {
	Notify(event Event)
	Close() error
}

// kafkaDispatcher buffers events on a channel and drains them to a Kafka
// topic from a single background goroutine, keeping broker I/O off the
// request path.
type kafkaDispatcher struct {
	writer    *kafka.Writer
	events    chan Event
	done      chan struct{}
	published *atomic.Int64
	dropped   *atomic.Int64
}

func NewKafkaDispatcher(brokers []string, topic string) Dispatcher {
	d := &kafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
		published: atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
	}

	go d.drain()

	return d
}

func (d *kafkaDispatcher) Notify(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	select {
	case d.events <- event:
	default:
		// Buffer full; drop rather than block a committed transition.
		d.dropped.Inc()
		log.Printf("notify: dropped %s event for request %s (buffer full)", event.Type, event.RideRequestID)
	}
}

func (d *kafkaDispatcher) drain() {
	for event := range d.events {
		value, err := json.Marshal(event)
		if err != nil {
			log.Printf("notify: failed to encode %s event: %v", event.Type, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event.RideRequestID),
			Value: value,
		})
		cancel()

		if err != nil {
			log.Printf("notify: failed to publish %s event for request %s: %v", event.Type, event.RideRequestID, err)
			continue
		}
		d.published.Inc()
	}
	close(d.done)
}

func (d *kafkaDispatcher) Close() error {
	close(d.events)
	<-d.done
	log.Printf("notify: dispatcher closed (published=%d dropped=%d)", d.published.Load(), d.dropped.Load())
	return d.writer.Close()
}
