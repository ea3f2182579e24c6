package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/havenhealth/patient-portal/pkg/logging"
)

// ChangeEvent notifies subscribers that a patient's appointments changed.
// Subscribers treat any event as a cue to re-fetch the list; the payload is
// informational only.
type ChangeEvent struct {
	Op            string    `json:"op"` // insert, update, delete
	AppointmentID string    `json:"appointment_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Feed is a change-notification channel scoped per patient.
type Feed interface {
	Publish(ctx context.Context, patientID string, event ChangeEvent) error
	// Subscribe returns a channel of events for the patient and a cancel
	// function that releases the subscription. The channel is closed after
	// cancel or when ctx ends.
	Subscribe(ctx context.Context, patientID string) (<-chan ChangeEvent, func(), error)
}

func feedChannel(patientID string) string {
	return fmt.Sprintf("appointments:changes:%s", patientID)
}

// RedisFeed implements Feed over Redis pub/sub, so notifications reach every
// API instance regardless of which one performed the mutation.
type RedisFeed struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisFeed creates a Redis-backed change feed.
func NewRedisFeed(client *redis.Client, logger *logging.Logger) *RedisFeed {
	if client == nil {
		panic("appointments: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisFeed{client: client, logger: logger}
}

// Publish broadcasts a change event for the patient.
func (f *RedisFeed) Publish(ctx context.Context, patientID string, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("appointments: marshal change event: %w", err)
	}
	if err := f.client.Publish(ctx, feedChannel(patientID), data).Err(); err != nil {
		return fmt.Errorf("appointments: publish change event: %w", err)
	}
	return nil
}

// Subscribe listens for the patient's change events.
func (f *RedisFeed) Subscribe(ctx context.Context, patientID string) (<-chan ChangeEvent, func(), error) {
	sub := f.client.Subscribe(ctx, feedChannel(patientID))
	// Force the subscription to be established before returning so callers
	// cannot miss events published immediately after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("appointments: subscribe failed: %w", err)
	}

	out := make(chan ChangeEvent, 8)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("dropping malformed change event", "error", err, "patient_id", patientID)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

// MemoryFeed is an in-process Feed for tests and single-node development.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string][]chan ChangeEvent
}

// NewMemoryFeed creates an in-memory feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string][]chan ChangeEvent)}
}

// Publish delivers the event to the patient's subscribers without blocking;
// slow subscribers miss events rather than stalling mutations.
func (f *MemoryFeed) Publish(ctx context.Context, patientID string, event ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[patientID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber channel for the patient.
func (f *MemoryFeed) Subscribe(ctx context.Context, patientID string) (<-chan ChangeEvent, func(), error) {
	ch := make(chan ChangeEvent, 8)
	f.mu.Lock()
	f.subs[patientID] = append(f.subs[patientID], ch)
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			subs := f.subs[patientID]
			for i, c := range subs {
				if c == ch {
					f.subs[patientID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
