package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/repository"
)

// SSEHandler streams RideRequest snapshots to watching clients.
// Push-on-change with at-least-once delivery: every committed mutation
// publishes a snapshot; slow clients may miss intermediate states but
// always converge on the latest one.
type SSEHandler struct {
	repo    repository.RideRequestRepository
	redis   *redis.Client
	clients map[string]map[chan []byte]bool // rideRequestID -> watchers
	mu      sync.RWMutex
}

func NewSSEHandler(repo repository.RideRequestRepository, redisClient *redis.Client) *SSEHandler {
	h := &SSEHandler{
		repo:    repo,
		redis:   redisClient,
		clients: make(map[string]map[chan []byte]bool),
	}

	go h.listenForSnapshots()

	return h
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ride-requests/{id}/watch", h.WatchRideRequest)
}

// WatchRideRequest handles SSE subscriptions for live request updates
func (h *SSEHandler) WatchRideRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	if requestID == "" {
		http.Error(w, "ride request id required", http.StatusBadRequest)
		return
	}

	req, err := h.repo.GetByID(r.Context(), requestID)
	if err != nil || req == nil {
		http.Error(w, "ride request not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan []byte, 10)
	h.addWatcher(requestID, clientChan)
	defer h.removeWatcher(requestID, clientChan)

	// Current state first, so the client never starts blind.
	if snapshot, err := json.Marshal(req); err == nil {
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
		flusher.Flush()
	}

	ctx := r.Context()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-clientChan:
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: heartbeat\ndata: {\"time\": %q}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) addWatcher(requestID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[requestID] == nil {
		h.clients[requestID] = make(map[chan []byte]bool)
	}
	h.clients[requestID][ch] = true
}

func (h *SSEHandler) removeWatcher(requestID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if watchers, ok := h.clients[requestID]; ok {
		delete(watchers, ch)
		if len(watchers) == 0 {
			delete(h.clients, requestID)
		}
	}
	close(ch)
}

func (h *SSEHandler) broadcast(requestID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients[requestID] {
		select {
		case ch <- data:
		default:
			// Watcher too slow; it will catch up on the next snapshot.
		}
	}
}

// listenForSnapshots relays published snapshots to local watchers.
func (h *SSEHandler) listenForSnapshots() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, notify.SnapshotChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var req models.RideRequest
		if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
			log.Printf("sse: dropping malformed snapshot: %v", err)
			continue
		}
		h.broadcast(req.ID, []byte(msg.Payload))
	}
}
