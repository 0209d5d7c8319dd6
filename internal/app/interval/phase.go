// Package interval provides the interval timer engine for timed work/rest blocks.
package interval

// Phase represents the engine's top-level state.
type Phase int

const (
	PhaseIdle      Phase = iota // Configured, not started
	PhaseCountdown              // "Get ready" window before the first work phase
	PhaseWork                   // Work phase of the current round
	PhaseRest                   // Rest phase between rounds
	PhasePaused                 // Frozen; resumes into the remembered phase
	PhaseComplete               // All rounds of the block elapsed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountdown:
		return "countdown"
	case PhaseWork:
		return "work"
	case PhaseRest:
		return "rest"
	case PhasePaused:
		return "paused"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Ticking reports whether the tick loop runs in this phase.
func (p Phase) Ticking() bool {
	return p == PhaseCountdown || p == PhaseWork || p == PhaseRest
}

// counted reports whether ticks in this phase count toward elapsed time.
func (p Phase) counted() bool {
	return p == PhaseWork || p == PhaseRest
}

// ParsePhase parses the string form of a phase.
func ParsePhase(s string) (Phase, bool) {
	for p := PhaseIdle; p <= PhaseComplete; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return PhaseIdle, false
}
