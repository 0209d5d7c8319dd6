// Package notification provides the notification manager for broadcasting timer events.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hiitbox/internal/app/interval"
	"github.com/osa030/hiitbox/internal/domain/workout"
)

// SendTimeout bounds a single subscriber send during Broadcast.
const SendTimeout = 500 * time.Millisecond

// Type identifies a notification.
type Type string

const (
	TypeStateChanged     Type = "state_changed"
	TypeTick             Type = "tick"
	TypeBlockRecorded    Type = "block_recorded"
	TypeBlockRated       Type = "block_rated"
	TypeExerciseAdded    Type = "exercise_added"
	TypeExerciseFinished Type = "exercise_finished"
	TypeWorkoutFinished  Type = "workout_finished"
)

// TypeFromEvent maps an engine event type to a notification type.
func TypeFromEvent(t interval.EventType) (Type, bool) {
	switch t {
	case interval.EventStateChanged:
		return TypeStateChanged, true
	case interval.EventTick:
		return TypeTick, true
	case interval.EventBlockRecorded:
		return TypeBlockRecorded, true
	case interval.EventBlockRated:
		return TypeBlockRated, true
	default:
		return "", false
	}
}

// Notification is a timer update delivered to subscribers.
type Notification struct {
	Type       Type
	SequenceNo uint64
	ExerciseID string                 // Empty for workout-wide notifications
	Movement   string                 // Movement of the exercise
	Snapshot   interval.Snapshot      // Engine state at the time of the event
	Entry      *workout.IntervalEntry // Set for exercise_finished
	At         time.Time
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id         string
	exerciseID string // Only notifications of this exercise; empty for all
	stream     Stream
}

func (s *subscription) wants(n *Notification) bool {
	return s.exerciseID == "" || n.ExerciseID == "" || s.exerciseID == n.ExerciseID
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
// A non-empty exerciseID limits the subscription to that exercise.
func (m *Manager) Subscribe(stream Stream, exerciseID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:         id,
		exerciseID: exerciseID,
		stream:     stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends a notification to all interested subscribers.
// Each stream send runs in its own goroutine bounded by SendTimeout.
func (m *Manager) Broadcast(notification *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	notification.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	if notification.At.IsZero() {
		notification.At = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.wants(notification) {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Str("subscription", s.id).Msg("notification: send failed")
				}
			case <-ctx.Done():
				zlog.Debug().Str("subscription", s.id).Msg("notification: send timed out")
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
