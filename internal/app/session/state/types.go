// Package state provides workout state management.
package state

import "time"

// Phase represents the workout lifecycle phase.
type Phase int

const (
	PhaseActive   Phase = iota // Exercises can be added and run
	PhaseFinished              // Workout finished; record written
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Info is a copy of the workout state.
type Info struct {
	WorkoutID string
	Phase     Phase
	StartedAt time.Time
	EndedAt   *time.Time
}
