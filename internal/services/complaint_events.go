package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ComplaintEventsChannel = "complaints:events"

	EventComplaintSubmitted     = "complaint.submitted"
	EventComplaintStatusChanged = "complaint.status_changed"

	subscriberBuffer = 16
)

// ComplaintEvent is broadcast over Redis and delivered to feed subscribers.
type ComplaintEvent struct {
	Type           string                   `json:"type"`
	ComplaintID    string                   `json:"complaint_id"`
	OwnerID        string                   `json:"owner_id"`
	Status         models.ComplaintStatus   `json:"status"`
	PreviousStatus models.ComplaintStatus   `json:"previous_status,omitempty"`
	Category       models.ComplaintCategory `json:"category"`
	Subject        string                   `json:"subject"`
	Timestamp      time.Time                `json:"timestamp"`
}

// Subscriber receives events visible to one connected user.
type Subscriber struct {
	UserID  string
	IsAdmin bool
	C       chan ComplaintEvent
}

func (s *Subscriber) wants(evt ComplaintEvent) bool {
	return s.IsAdmin || evt.OwnerID == s.UserID
}

// ComplaintHub fans complaint events out to local subscribers. With Redis
// configured, Publish goes through a shared channel so every instance sees
// every event; without it, events are delivered locally only.
type ComplaintHub struct {
	rdb  *redis.Client
	log  *zap.Logger
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
	once sync.Once
}

func NewComplaintHub(rdb *redis.Client, log *zap.Logger) *ComplaintHub {
	return &ComplaintHub{rdb: rdb, log: log, subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber; call the returned func to remove it.
func (h *ComplaintHub) Subscribe(userID string, isAdmin bool) (*Subscriber, func()) {
	sub := &Subscriber{UserID: userID, IsAdmin: isAdmin, C: make(chan ComplaintEvent, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.C)
		})
	}
}

// Publish sends evt to all instances.
func (h *ComplaintHub) Publish(ctx context.Context, evt ComplaintEvent) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if h.rdb == nil {
		h.fanOut(evt)
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, ComplaintEventsChannel, data).Err()
}

// fanOut delivers evt to matching local subscribers. A subscriber whose
// buffer is full misses the event rather than stalling the hub.
func (h *ComplaintHub) fanOut(evt ComplaintEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.wants(evt) {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			h.log.Warn("complaint feed subscriber lagging, event dropped", zap.String("user_id", sub.UserID))
		}
	}
}

// Start runs the Redis listener once per process until ctx is cancelled.
func (h *ComplaintHub) Start(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	h.once.Do(func() {
		go h.run(ctx)
	})
}

func (h *ComplaintHub) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if h.listen(ctx) {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

// listen consumes the channel until an error; it reports whether any message was received.
func (h *ComplaintHub) listen(ctx context.Context) bool {
	pubsub := h.rdb.Subscribe(ctx, ComplaintEventsChannel)
	defer pubsub.Close()

	h.log.Info("✅ Complaint event subscriber started", zap.String("channel", ComplaintEventsChannel))

	received := false
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				h.log.Warn("complaint event subscriber error", zap.Error(err))
			}
			return received
		}
		received = true

		var evt ComplaintEvent
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			h.log.Warn("failed to decode complaint event", zap.Error(err))
			continue
		}
		h.fanOut(evt)
	}
}
