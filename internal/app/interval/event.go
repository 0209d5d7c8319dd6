package interval

import (
	"time"

	"github.com/osa030/hiitbox/internal/domain/workout"
)

// EventType represents an engine event type.
type EventType int

const (
	EventStateChanged  EventType = iota // A command or transition changed the phase
	EventTick                           // A tick advanced time without a transition
	EventBlockRecorded                  // GoAgain recorded a block
	EventBlockRated                     // A difficulty was set or staged
	EventClosed                         // The engine was closed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventTick:
		return "tick"
	case EventBlockRecorded:
		return "block_recorded"
	case EventBlockRated:
		return "block_rated"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Phase             Phase           // Current phase
	PausedFrom        Phase           // Phase restored by Resume; PhaseIdle unless paused
	CurrentRound      int             // 1-based round counter
	Rounds            int             // Configured rounds per block
	TimeRemaining     int             // Seconds left in the active (or paused) phase
	TotalElapsed      int             // Work and rest seconds of the current block
	CompletedBlocks   []workout.Block // Blocks recorded via GoAgain
	PendingDifficulty int             // Difficulty staged for the current block
}

// CurrentBlock returns the finished but unrecorded block, or nil when the
// engine is not sitting in its complete phase.
func (s Snapshot) CurrentBlock() *workout.Block {
	if s.Phase != PhaseComplete {
		return nil
	}
	return &workout.Block{
		TotalTime:  s.TotalElapsed,
		Difficulty: s.PendingDifficulty,
	}
}

// Event represents an engine update for observers.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	At       time.Time
}
