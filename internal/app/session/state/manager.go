package state

import (
	"sync"
	"time"
)

// Manager manages workout state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	workoutID string
	phase     Phase
	startedAt time.Time
	endedAt   *time.Time
}

// New creates a new state manager for an active workout.
func New(workoutID string, startedAt time.Time) *Manager {
	return &Manager{
		workoutID: workoutID,
		phase:     PhaseActive,
		startedAt: startedAt,
	}
}

// GetPhase returns the current workout phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// IsActive returns true while the workout accepts commands.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase == PhaseActive
}

// GetWorkoutID returns the workout ID.
func (m *Manager) GetWorkoutID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.workoutID
}

// Finish moves the workout to PhaseFinished.
// It returns false if the workout was already finished.
func (m *Manager) Finish(endedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseFinished {
		return false
	}
	m.phase = PhaseFinished
	m.endedAt = &endedAt
	return true
}

// GetTimes returns the start and end times.
func (m *Manager) GetTimes() (time.Time, *time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startedAt, m.endedAt
}

// Info returns a copy of the workout state.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := Info{
		WorkoutID: m.workoutID,
		Phase:     m.phase,
		StartedAt: m.startedAt,
	}
	if m.endedAt != nil {
		ended := *m.endedAt
		info.EndedAt = &ended
	}
	return info
}
