// Package session provides the workout session manager.
package session

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hiitbox/internal/app/interval"
	"github.com/osa030/hiitbox/internal/app/notification"
	"github.com/osa030/hiitbox/internal/app/session/registry"
	"github.com/osa030/hiitbox/internal/app/session/state"
	"github.com/osa030/hiitbox/internal/app/wakehold"
	"github.com/osa030/hiitbox/internal/domain/workout"
)

var (
	ErrUnknownExercise  = registry.ErrUnknownExercise
	ErrExerciseFinished = registry.ErrExerciseFinished
	ErrWorkoutFinished  = errors.New("workout is finished")
)

// eventBuffer is the per-engine subscription buffer used for forwarding.
const eventBuffer = 32

// Config holds session configuration.
type Config struct {
	TickInterval time.Duration   // Engine tick period
	Defaults     interval.Config // Used for durations an ExerciseRequest leaves unset
	ManualClock  bool            // Engines do not tick on their own
}

// Manager hosts one workout: its exercise slots, their engines and the
// notification fan-out.
type Manager struct {
	mu sync.Mutex

	config Config

	// Components
	stateMgr     *state.Manager
	exerciseReg  *registry.ExerciseRegistry
	notification *notification.Manager
	cues         interval.CueEmitter
	wakeHold     *wakehold.Hold

	record workout.Record

	forwarders sync.WaitGroup
	done       chan struct{}
}

// NewManager creates a new session manager. cues and hold may be nil.
func NewManager(cfg Config, cues interval.CueEmitter, hold *wakehold.Hold) *Manager {
	workoutID := uuid.New().String()
	now := time.Now()

	return &Manager{
		config:       cfg,
		stateMgr:     state.New(workoutID, now),
		exerciseReg:  registry.NewExerciseRegistry(),
		notification: notification.NewManager(),
		cues:         cues,
		wakeHold:     hold,
		record: workout.Record{
			ID:        workoutID,
			StartedAt: now,
		},
		done: make(chan struct{}),
	}
}

// ExerciseInfo describes an exercise slot and its engine state.
type ExerciseInfo struct {
	Exercise workout.Exercise
	Snapshot interval.Snapshot
	Finished bool
	Entry    *workout.IntervalEntry
}

// ExerciseRequest describes an exercise to add. Nil durations fall back
// to the configured defaults.
type ExerciseRequest struct {
	MovementID   string
	WorkDuration *int
	RestDuration *int
	Rounds       *int
}

// AddExercise adds an exercise slot with its own engine.
func (m *Manager) AddExercise(req ExerciseRequest) (ExerciseInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stateMgr.IsActive() {
		return ExerciseInfo{}, ErrWorkoutFinished
	}
	if req.MovementID == "" {
		return ExerciseInfo{}, errors.New("movement is required")
	}

	movementID := req.MovementID
	config := m.configFor(req)

	opts := interval.Options{
		TickInterval: m.config.TickInterval,
		ManualClock:  m.config.ManualClock,
		Cues:         m.cues,
	}
	var wake registry.Releaser
	if m.wakeHold != nil {
		claim := m.wakeHold.Claim()
		opts.WakeHold = claim
		wake = claim
	}

	engine, err := interval.New(config, opts)
	if err != nil {
		if wake != nil {
			wake.Release()
		}
		return ExerciseInfo{}, errors.Wrap(err, "failed to create interval engine")
	}

	id := m.exerciseReg.Add(movementID, config, engine, wake)

	events, _ := engine.Subscribe(eventBuffer)
	m.forwarders.Add(1)
	go m.forward(id, movementID, events)

	zlog.Info().Msgf("exercise added: exercise_id=%s movement=%s work=%d rest=%d rounds=%d",
		id, movementID, config.WorkDuration, config.RestDuration, config.Rounds)

	snap := engine.Snapshot()
	m.notification.Broadcast(&notification.Notification{
		Type:       notification.TypeExerciseAdded,
		ExerciseID: id,
		Movement:   movementID,
		Snapshot:   snap,
	})

	slot, err := m.exerciseReg.Get(id)
	if err != nil {
		return ExerciseInfo{}, err
	}
	return ExerciseInfo{Exercise: slot.Exercise, Snapshot: snap}, nil
}

func (m *Manager) configFor(req ExerciseRequest) interval.Config {
	config := m.config.Defaults
	if req.WorkDuration != nil {
		config.WorkDuration = *req.WorkDuration
	}
	if req.RestDuration != nil {
		config.RestDuration = *req.RestDuration
	}
	if req.Rounds != nil {
		config.Rounds = *req.Rounds
	}
	return config
}

// forward relays engine events of one exercise to notification subscribers.
func (m *Manager) forward(exerciseID, movementID string, events <-chan interval.Event) {
	defer m.forwarders.Done()
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event forwarder panicked: exercise_id=%s panic=%v", exerciseID, r)
		}
	}()

	for event := range events {
		t, ok := notification.TypeFromEvent(event.Type)
		if !ok {
			continue
		}
		m.notification.Broadcast(&notification.Notification{
			Type:       t,
			ExerciseID: exerciseID,
			Movement:   movementID,
			Snapshot:   event.Snapshot,
			At:         event.At,
		})
	}
}

// engine returns the engine of a running exercise.
func (m *Manager) engine(exerciseID string) (*interval.Engine, error) {
	if !m.stateMgr.IsActive() {
		return nil, ErrWorkoutFinished
	}
	if err := m.exerciseReg.Validate(exerciseID); err != nil {
		return nil, err
	}
	slot, err := m.exerciseReg.Get(exerciseID)
	if err != nil {
		return nil, err
	}
	return slot.Engine, nil
}

// Start starts the exercise's timer.
func (m *Manager) Start(exerciseID string) (bool, error) {
	return m.command(exerciseID, "start", (*interval.Engine).Start)
}

// Pause pauses the exercise's timer.
func (m *Manager) Pause(exerciseID string) (bool, error) {
	return m.command(exerciseID, "pause", (*interval.Engine).Pause)
}

// Resume resumes the exercise's timer.
func (m *Manager) Resume(exerciseID string) (bool, error) {
	return m.command(exerciseID, "resume", (*interval.Engine).Resume)
}

// Reset resets the exercise's timer, discarding the block in progress.
func (m *Manager) Reset(exerciseID string) (bool, error) {
	return m.command(exerciseID, "reset", (*interval.Engine).Reset)
}

// GoAgain records the finished block and prepares the next one.
func (m *Manager) GoAgain(exerciseID string) (bool, error) {
	return m.command(exerciseID, "go_again", (*interval.Engine).GoAgain)
}

// RateBlock rates a completed block, or stages the rating of the current one.
func (m *Manager) RateBlock(exerciseID string, index, difficulty int) (bool, error) {
	return m.command(exerciseID, "rate_block", func(e *interval.Engine) bool {
		return e.RateBlock(index, difficulty)
	})
}

func (m *Manager) command(exerciseID, name string, fn func(*interval.Engine) bool) (bool, error) {
	engine, err := m.engine(exerciseID)
	if err != nil {
		return false, err
	}
	applied := fn(engine)
	zlog.Debug().Msgf("command: exercise_id=%s command=%s applied=%t", exerciseID, name, applied)
	return applied, nil
}

// Snapshot returns the state of an exercise.
func (m *Manager) Snapshot(exerciseID string) (ExerciseInfo, error) {
	slot, err := m.exerciseReg.Get(exerciseID)
	if err != nil {
		return ExerciseInfo{}, err
	}
	return toInfo(slot), nil
}

// ListExercises returns every exercise in the order they were added.
func (m *Manager) ListExercises() []ExerciseInfo {
	slots := m.exerciseReg.All()
	result := make([]ExerciseInfo, 0, len(slots))
	for _, slot := range slots {
		result = append(result, toInfo(slot))
	}
	return result
}

func toInfo(slot registry.Slot) ExerciseInfo {
	return ExerciseInfo{
		Exercise: slot.Exercise,
		Snapshot: slot.Engine.Snapshot(),
		Finished: slot.Finished,
		Entry:    slot.Entry,
	}
}

// FinishExercise finalizes an exercise into the workout record.
// A block that finished but was not recorded is included; a block in
// progress is discarded.
func (m *Manager) FinishExercise(exerciseID string) (workout.IntervalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stateMgr.IsActive() {
		return workout.IntervalEntry{}, ErrWorkoutFinished
	}
	return m.finishExerciseLocked(exerciseID)
}

func (m *Manager) finishExerciseLocked(exerciseID string) (workout.IntervalEntry, error) {
	entry, err := m.exerciseReg.Finish(exerciseID)
	if err != nil {
		return workout.IntervalEntry{}, err
	}
	m.record.Add(entry)

	zlog.Info().Msgf("exercise finished: exercise_id=%s movement=%s blocks=%d total_time=%d",
		exerciseID, entry.MovementID, len(entry.Blocks), entry.TotalTime())

	entryCopy := entry
	m.notification.Broadcast(&notification.Notification{
		Type:       notification.TypeExerciseFinished,
		ExerciseID: exerciseID,
		Movement:   entry.MovementID,
		Entry:      &entryCopy,
	})
	return entry, nil
}

// FinishWorkout finalizes every running exercise and ends the workout.
func (m *Manager) FinishWorkout() (workout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stateMgr.IsActive() {
		return workout.Record{}, ErrWorkoutFinished
	}

	for _, id := range m.exerciseReg.Running() {
		if _, err := m.finishExerciseLocked(id); err != nil {
			zlog.Error().Msgf("failed to finish exercise: exercise_id=%s error=%v", id, err)
		}
	}

	now := time.Now()
	m.stateMgr.Finish(now)
	m.record.EndedAt = now

	zlog.Info().Msgf("workout finished: workout_id=%s exercises=%d blocks=%d",
		m.record.ID, len(m.record.Exercises), m.record.BlockCount())

	m.notification.Broadcast(&notification.Notification{
		Type: notification.TypeWorkoutFinished,
	})
	close(m.done)

	return m.recordCopyLocked(), nil
}

// Record returns a copy of the workout record built so far.
func (m *Manager) Record() workout.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordCopyLocked()
}

func (m *Manager) recordCopyLocked() workout.Record {
	r := m.record
	r.Exercises = append([]workout.IntervalEntry(nil), m.record.Exercises...)
	return r
}

// Info returns the workout state.
func (m *Manager) Info() state.Info {
	return m.stateMgr.Info()
}

// Done returns a channel that is closed when the workout is finished.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Close stops every engine and drops all subscriptions.
func (m *Manager) Close() {
	for _, slot := range m.exerciseReg.All() {
		slot.Engine.Close()
	}
	m.forwarders.Wait()
	m.notification.Close()
}
