// Package registry keeps the exercise slots of a workout.
package registry

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/hiitbox/internal/app/interval"
	"github.com/osa030/hiitbox/internal/domain/workout"
)

var (
	ErrUnknownExercise  = errors.New("unknown exercise")
	ErrExerciseFinished = errors.New("exercise is finished")
)

// Releaser gives back a resource held on behalf of a slot.
type Releaser interface {
	Release()
}

// slot is one exercise of the workout and the engine that times it.
type slot struct {
	exercise workout.Exercise
	engine   *interval.Engine
	addedAt  time.Time
	wake     Releaser
	finished bool
	entry    *workout.IntervalEntry
}

func (s *slot) view() Slot {
	v := Slot{
		Exercise: s.exercise,
		Engine:   s.engine,
		AddedAt:  s.addedAt,
		Finished: s.finished,
	}
	if s.entry != nil {
		entry := *s.entry
		v.Entry = &entry
	}
	return v
}

// Slot is a copy of an exercise slot.
type Slot struct {
	Exercise workout.Exercise
	Engine   *interval.Engine
	AddedAt  time.Time
	Finished bool
	Entry    *workout.IntervalEntry // Set once finished
}

// ExerciseRegistry manages exercise slots with thread-safe access.
type ExerciseRegistry struct {
	mu    sync.RWMutex
	slots map[string]*slot
	order []string
}

// NewExerciseRegistry creates a new exercise registry.
func NewExerciseRegistry() *ExerciseRegistry {
	return &ExerciseRegistry{
		slots: make(map[string]*slot),
		order: make([]string, 0),
	}
}

// Add registers a new slot and returns its ID.
// wake may be nil when no wake hold is shared.
func (r *ExerciseRegistry) Add(movementID string, config interval.Config, engine *interval.Engine, wake Releaser) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.slots[id] = &slot{
		exercise: workout.Exercise{
			ID:           id,
			MovementID:   movementID,
			WorkDuration: config.WorkDuration,
			RestDuration: config.RestDuration,
			Rounds:       config.Rounds,
		},
		engine:  engine,
		addedAt: time.Now(),
		wake:    wake,
	}
	r.order = append(r.order, id)
	return id
}

// Get retrieves a slot by ID.
func (r *ExerciseRegistry) Get(exerciseID string) (Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[exerciseID]
	if !ok {
		return Slot{}, errors.Wrapf(ErrUnknownExercise, "id %q", exerciseID)
	}
	return s.view(), nil
}

// Validate checks that a slot exists and is still running.
func (r *ExerciseRegistry) Validate(exerciseID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[exerciseID]
	if !ok {
		return errors.Wrapf(ErrUnknownExercise, "id %q", exerciseID)
	}
	if s.finished {
		return errors.Wrapf(ErrExerciseFinished, "id %q", exerciseID)
	}
	return nil
}

// Finish finalizes a slot: the entry is built from the engine's blocks,
// the engine is closed and the wake claim released.
func (r *ExerciseRegistry) Finish(exerciseID string) (workout.IntervalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[exerciseID]
	if !ok {
		return workout.IntervalEntry{}, errors.Wrapf(ErrUnknownExercise, "id %q", exerciseID)
	}
	if s.finished {
		return workout.IntervalEntry{}, errors.Wrapf(ErrExerciseFinished, "id %q", exerciseID)
	}

	snap := s.engine.Snapshot()
	entry := workout.Finalize(s.exercise, snap.CompletedBlocks, snap.CurrentBlock())

	s.engine.Close()
	if s.wake != nil {
		s.wake.Release()
	}
	s.finished = true
	s.entry = &entry
	return entry, nil
}

// All returns all slots in the order they were added.
func (r *ExerciseRegistry) All() []Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Slot, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.slots[id].view())
	}
	return result
}

// Running returns the IDs of slots that are not finished, in order.
func (r *ExerciseRegistry) Running() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if !r.slots[id].finished {
			result = append(result, id)
		}
	}
	return result
}

// Count returns the number of slots.
func (r *ExerciseRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}
