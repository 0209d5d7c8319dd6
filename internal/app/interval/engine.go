package interval

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hiitbox/internal/app/cue"
	"github.com/osa030/hiitbox/internal/domain/workout"
)

// CountdownSeconds is the length of the "get ready" phase.
const CountdownSeconds = 5

// Config holds the immutable block configuration of one engine.
type Config struct {
	WorkDuration int `yaml:"work_duration" validate:"gte=1"` // Seconds per work phase
	RestDuration int `yaml:"rest_duration" validate:"gte=0"` // Seconds per rest phase; 0 skips rest
	Rounds       int `yaml:"rounds" validate:"gte=1"`        // Work phases per block
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid interval config")
	}
	return nil
}

// PlannedDuration returns the work and rest seconds of one full block.
func (c Config) PlannedDuration() int {
	return workout.PlannedDuration(c.WorkDuration, c.RestDuration, c.Rounds)
}

// TotalTicks returns the ticks from Start to complete, countdown included.
func (c Config) TotalTicks() int {
	return CountdownSeconds + c.PlannedDuration()
}

// CueEmitter produces the audible phase cues.
type CueEmitter interface {
	Prepare() error
	Emit(name cue.Name) error
}

// WakeHolder receives the "stay awake" signal.
type WakeHolder interface {
	SetActive(active bool)
}

// Options holds the engine's collaborators and clock settings.
type Options struct {
	TickInterval time.Duration // Loop period; defaults to one second
	NewTicker    TickerFunc    // Defaults to NewTimeTicker
	ManualClock  bool          // Do not run an internal loop; the host calls Tick
	Cues         CueEmitter    // Optional
	WakeHold     WakeHolder    // Optional
}

// Engine is the interval timer state machine.
// Commands and ticks are serialized by one mutex; commands issued in a phase
// where they have no effect return false and leave the state untouched.
type Engine struct {
	mu sync.Mutex

	config  Config
	options Options

	// Session state
	phase             Phase
	pausedFrom        Phase
	currentRound      int
	timeRemaining     int
	totalElapsed      int
	blocks            []workout.Block
	pendingDifficulty int

	// Loop
	ticking    bool
	generation uint64 // Bumped on every arm; ticks of an older loop are dropped
	loopCancel func()
	wg         sync.WaitGroup

	wakeActive bool

	// Observers
	subscribers map[chan Event]struct{}
	closed      bool
}

// New creates an idle engine.
func New(config Config, options Options) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	if options.NewTicker == nil {
		options.NewTicker = NewTimeTicker
	}

	return &Engine{
		config:        config,
		options:       options,
		phase:         PhaseIdle,
		pausedFrom:    PhaseIdle,
		currentRound:  1,
		timeRemaining: config.WorkDuration,
		blocks:        make([]workout.Block, 0),
		subscribers:   make(map[chan Event]struct{}),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Start begins a block from idle.
// The cue channel is prepared synchronously inside this call.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.phase != PhaseIdle {
		return false
	}

	e.phase = PhaseCountdown
	e.pausedFrom = PhaseIdle
	e.timeRemaining = CountdownSeconds
	e.totalElapsed = 0
	e.currentRound = 1

	e.prepareCuesLocked()
	e.armLocked()
	e.syncWakeLocked()

	zlog.Debug().Int("work", e.config.WorkDuration).Int("rest", e.config.RestDuration).
		Int("rounds", e.config.Rounds).Msg("interval: started")
	e.publishLocked(EventStateChanged)
	return true
}

// Pause freezes a running phase.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.phase.Ticking() {
		return false
	}

	e.disarmLocked()
	e.pausedFrom = e.phase
	e.phase = PhasePaused
	e.syncWakeLocked()

	zlog.Debug().Str("from", e.pausedFrom.String()).Int("remaining", e.timeRemaining).Msg("interval: paused")
	e.publishLocked(EventStateChanged)
	return true
}

// Resume restores the paused phase with its exact remaining time.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.phase != PhasePaused {
		return false
	}

	e.phase = e.pausedFrom
	e.pausedFrom = PhaseIdle
	e.armLocked()
	e.syncWakeLocked()

	zlog.Debug().Str("phase", e.phase.String()).Int("remaining", e.timeRemaining).Msg("interval: resumed")
	e.publishLocked(EventStateChanged)
	return true
}

// Reset discards the in-progress block and returns to idle.
// Completed blocks are kept.
func (e *Engine) Reset() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.phase == PhaseIdle {
		return false
	}

	e.resetLocked()
	zlog.Debug().Msg("interval: reset")
	e.publishLocked(EventStateChanged)
	return true
}

// GoAgain records the finished block and returns to idle.
func (e *Engine) GoAgain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.phase != PhaseComplete {
		return false
	}

	block := workout.Block{
		TotalTime:  e.totalElapsed,
		Difficulty: e.pendingDifficulty,
	}
	e.blocks = append(e.blocks, block)
	e.resetLocked()

	zlog.Debug().Int("blocks", len(e.blocks)).Int("total_time", block.TotalTime).Msg("interval: block recorded")
	e.publishLocked(EventBlockRecorded)
	return true
}

// RateBlock sets the difficulty of a completed block. An index equal to the
// number of completed blocks stages the difficulty of the current block.
func (e *Engine) RateBlock(index, difficulty int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !workout.ValidDifficulty(difficulty) {
		return false
	}

	switch {
	case index >= 0 && index < len(e.blocks):
		e.blocks[index].Difficulty = difficulty
	case index == len(e.blocks):
		e.pendingDifficulty = difficulty
	default:
		return false
	}

	e.publishLocked(EventBlockRated)
	return true
}

// Tick advances time by one tick. It is a no-op unless the loop is armed.
// Hosts running with ManualClock drive the engine through this method.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.ticking {
		return false
	}
	e.tickLocked()
	return true
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel of engine events and a function that cancels
// the subscription. Events are dropped for subscribers that fall behind.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		close(ch)
		return ch, func() {}
	}
	e.subscribers[ch] = struct{}{}

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
	}
}

// Close stops the loop, releases the wake hold and closes every subscription.
// Later commands are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.disarmLocked()
	if e.wakeActive {
		e.wakeActive = false
		e.setWakeLocked(false)
	}
	e.publishLocked(EventClosed)
	e.closed = true
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) tickLocked() {
	if e.timeRemaining > 1 && e.timeRemaining <= 4 {
		e.emitLocked(cue.CountdownTick)
	}

	e.timeRemaining--
	if e.phase.counted() {
		e.totalElapsed++
	}

	if e.timeRemaining > 0 {
		e.publishLocked(EventTick)
		return
	}

	e.advanceLocked()
	e.syncWakeLocked()
	e.publishLocked(EventStateChanged)
}

// advanceLocked applies the transition for a phase whose time ran out.
func (e *Engine) advanceLocked() {
	switch e.phase {
	case PhaseCountdown:
		e.enterWorkLocked()

	case PhaseWork:
		if e.currentRound >= e.config.Rounds {
			e.disarmLocked()
			e.phase = PhaseComplete
			e.timeRemaining = 0
			zlog.Debug().Int("total_elapsed", e.totalElapsed).Msg("interval: complete")
			e.emitLocked(cue.SessionComplete)
			return
		}
		if e.config.RestDuration == 0 {
			e.currentRound++
			e.enterWorkLocked()
			return
		}
		e.phase = PhaseRest
		e.timeRemaining = e.config.RestDuration
		zlog.Debug().Int("round", e.currentRound).Msg("interval: rest")
		e.emitLocked(cue.RestStart)

	case PhaseRest:
		e.currentRound++
		e.enterWorkLocked()
	}
}

func (e *Engine) enterWorkLocked() {
	e.phase = PhaseWork
	e.timeRemaining = e.config.WorkDuration
	zlog.Debug().Int("round", e.currentRound).Msg("interval: work")
	e.emitLocked(cue.WorkStart)
}

func (e *Engine) resetLocked() {
	e.disarmLocked()
	e.phase = PhaseIdle
	e.pausedFrom = PhaseIdle
	e.timeRemaining = e.config.WorkDuration
	e.currentRound = 1
	e.totalElapsed = 0
	e.pendingDifficulty = workout.DifficultyNone
	e.syncWakeLocked()
}

// armLocked starts a new tick loop, cancelling any previous one first.
func (e *Engine) armLocked() {
	e.disarmLocked()
	e.generation++
	e.ticking = true

	if e.options.ManualClock {
		return
	}

	ticker := e.options.NewTicker(e.options.TickInterval)
	done := make(chan struct{})
	gen := e.generation

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				e.tickFrom(gen)
			}
		}
	}()

	e.loopCancel = func() {
		ticker.Stop()
		close(done)
	}
}

func (e *Engine) disarmLocked() {
	if e.loopCancel != nil {
		e.loopCancel()
		e.loopCancel = nil
	}
	e.ticking = false
}

// tickFrom handles a tick of the loop with the given generation.
func (e *Engine) tickFrom(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.ticking || gen != e.generation {
		return
	}
	e.tickLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	blocks := make([]workout.Block, len(e.blocks))
	copy(blocks, e.blocks)
	return Snapshot{
		Phase:             e.phase,
		PausedFrom:        e.pausedFrom,
		CurrentRound:      e.currentRound,
		Rounds:            e.config.Rounds,
		TimeRemaining:     e.timeRemaining,
		TotalElapsed:      e.totalElapsed,
		CompletedBlocks:   blocks,
		PendingDifficulty: e.pendingDifficulty,
	}
}

// publishLocked sends an event to every subscriber without blocking.
func (e *Engine) publishLocked(eventType EventType) {
	if len(e.subscribers) == 0 {
		return
	}
	event := Event{
		Type:     eventType,
		Snapshot: e.snapshotLocked(),
		At:       time.Now(),
	}
	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			zlog.Debug().Str("type", eventType.String()).Msg("interval: subscriber behind, event dropped")
		}
	}
}

// syncWakeLocked requests the wake hold while work or rest is running.
func (e *Engine) syncWakeLocked() {
	want := e.phase.counted()
	if want == e.wakeActive {
		return
	}
	e.wakeActive = want
	e.setWakeLocked(want)
}

func (e *Engine) setWakeLocked(active bool) {
	if e.options.WakeHold == nil {
		return
	}
	defer recoverCollaborator("wake hold")
	e.options.WakeHold.SetActive(active)
}

func (e *Engine) prepareCuesLocked() {
	if e.options.Cues == nil {
		return
	}
	defer recoverCollaborator("cue prepare")
	if err := e.options.Cues.Prepare(); err != nil {
		zlog.Debug().Err(err).Msg("interval: cue prepare failed")
	}
}

func (e *Engine) emitLocked(name cue.Name) {
	if e.options.Cues == nil {
		return
	}
	defer recoverCollaborator("cue emit")
	if err := e.options.Cues.Emit(name); err != nil {
		zlog.Debug().Err(err).Str("cue", string(name)).Msg("interval: cue emit failed")
	}
}

func recoverCollaborator(what string) {
	if r := recover(); r != nil {
		zlog.Debug().Interface("panic", r).Msg("interval: " + what + " panicked")
	}
}
