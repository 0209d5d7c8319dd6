// Package main provides a local interval timer driven from the terminal.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	zlog "github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/osa030/hiitbox/internal/app/cue"
	"github.com/osa030/hiitbox/internal/app/interval"
	"github.com/osa030/hiitbox/internal/app/wakehold"
	"github.com/osa030/hiitbox/internal/domain/workout"
	"github.com/osa030/hiitbox/internal/infra/logger"
	"github.com/osa030/hiitbox/internal/infra/wakelock"
)

var (
	app      = kingpin.New("hiitbox-run", "Run one interval exercise in the terminal")
	movement = app.Arg("movement", "Movement name").Default("intervals").String()
	work     = app.Flag("work", "Work seconds per round").Default("30").Int()
	rest     = app.Flag("rest", "Rest seconds between rounds").Default("10").Int()
	rounds   = app.Flag("rounds", "Rounds per block").Default("6").Int()
	noBell   = app.Flag("no-bell", "Disable the terminal bell").Bool()
	noWake   = app.Flag("no-wake", "Do not keep the screen awake").Bool()
	verbose  = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
)

const help = `Commands (type and press Enter):
  s  start        p  pause        r  resume
  x  reset        g  go again     1-5  rate the finished block
  q  finish and print the entry`

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Output: "stderr", Level: level}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	config := interval.Config{WorkDuration: *work, RestDuration: *rest, Rounds: *rounds}

	cues := cue.NewChain()
	if !*noBell {
		cues.Add(cue.NewBellEmitter(os.Stdout))
	}

	opts := interval.Options{Cues: cues}
	if !*noWake {
		if hold := newWakeHold(); hold != nil {
			defer hold.Close()
			opts.WakeHold = hold
		}
	}

	engine, err := interval.New(config, opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("%s: %d x %ds work / %ds rest (%ds per block)\n",
		*movement, config.Rounds, config.WorkDuration, config.RestDuration, config.PlannedDuration())
	fmt.Println(help)

	events, cancel := engine.Subscribe(64)
	defer cancel()
	display := newDisplay(config)
	go func() {
		for ev := range events {
			display.show(ev)
		}
	}()

	readCommands(engine)

	snap := engine.Snapshot()
	entry := workout.Finalize(workout.Exercise{
		ID:           uuid.NewString(),
		MovementID:   *movement,
		WorkDuration: config.WorkDuration,
		RestDuration: config.RestDuration,
		Rounds:       config.Rounds,
	}, snap.CompletedBlocks, snap.CurrentBlock())

	out, err := yaml.Marshal(entry)
	if err != nil {
		zlog.Error().Msgf("Failed to encode entry: %v", err)
		os.Exit(1)
	}
	fmt.Printf("\n%s", out)
}

// readCommands applies stdin commands until "q" or EOF.
func readCommands(engine *interval.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		var applied bool
		switch cmd {
		case "":
			continue
		case "s":
			applied = engine.Start()
		case "p":
			applied = engine.Pause()
		case "r":
			applied = engine.Resume()
		case "x":
			applied = engine.Reset()
		case "g":
			applied = engine.GoAgain()
		case "q":
			return
		default:
			d, err := strconv.Atoi(cmd)
			if err != nil {
				fmt.Println(help)
				continue
			}
			// The finished block sits one past the recorded ones
			applied = engine.RateBlock(len(engine.Snapshot().CompletedBlocks), d)
		}
		if !applied {
			fmt.Printf("%q ignored in phase %s\n", cmd, engine.Snapshot().Phase)
		}
	}
}

func newWakeHold() *wakehold.Hold {
	inhibitor, err := wakelock.New()
	if err != nil {
		zlog.Warn().Msgf("Wake hold unavailable: %v", err)
		return nil
	}
	return wakehold.New(inhibitor, wakehold.Config{})
}

// display renders engine events, as a progress bar on terminals.
type display struct {
	config interval.Config
	bar    *progressbar.ProgressBar
}

func newDisplay(config interval.Config) *display {
	d := &display{config: config}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		d.bar = progressbar.Default(int64(config.TotalTicks()), "idle")
	}
	return d
}

func (d *display) show(ev interval.Event) {
	s := ev.Snapshot
	switch ev.Type {
	case interval.EventBlockRecorded:
		d.println(fmt.Sprintf("Block %d recorded", len(s.CompletedBlocks)))
		return
	case interval.EventBlockRated:
		d.println(fmt.Sprintf("Rated: %s", workout.DifficultyLabel(s.PendingDifficulty)))
		return
	case interval.EventClosed:
		return
	}

	label := fmt.Sprintf("%-9s %d/%d %3ds", s.Phase, s.CurrentRound, s.Rounds, s.TimeRemaining)
	if s.Phase == interval.PhasePaused {
		label = fmt.Sprintf("paused (%s) %3ds", s.PausedFrom, s.TimeRemaining)
	}

	if d.bar == nil {
		if ev.Type == interval.EventStateChanged {
			fmt.Println(label)
		}
		return
	}
	d.bar.Describe(label)
	_ = d.bar.Set(d.progress(s))
	if s.Phase == interval.PhaseComplete {
		d.println(fmt.Sprintf("Block complete: %ds. Rate 1-5, g to go again, q to finish", s.TotalElapsed))
	}
}

// progress maps a snapshot onto the ticks of one block.
func (d *display) progress(s interval.Snapshot) int {
	phase := s.Phase
	if phase == interval.PhasePaused {
		phase = s.PausedFrom
	}
	switch phase {
	case interval.PhaseIdle:
		return 0
	case interval.PhaseCountdown:
		return interval.CountdownSeconds - s.TimeRemaining
	case interval.PhaseComplete:
		return d.config.TotalTicks()
	default:
		return interval.CountdownSeconds + s.TotalElapsed
	}
}

func (d *display) println(msg string) {
	if d.bar != nil {
		_ = d.bar.Clear()
	}
	fmt.Println(msg)
}
