// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/hiitbox/internal/api/connect"
	"github.com/osa030/hiitbox/internal/app/cue"
	"github.com/osa030/hiitbox/internal/app/session"
	"github.com/osa030/hiitbox/internal/app/wakehold"
	"github.com/osa030/hiitbox/internal/infra/config"
	"github.com/osa030/hiitbox/internal/infra/logger"
	"github.com/osa030/hiitbox/internal/infra/wakelock"
)

var (
	app        = kingpin.New("hiitbox-server", "hiitbox interval timer server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listCuesCmd = app.Command("list-cues", "List available cue emitters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listCuesCmd.FullCommand() {
		printCues()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// run executes the main server logic so deferred cleanup runs on every exit.
func run(cfg *config.Config) error {
	cues, err := buildCues(cfg.Cues)
	if err != nil {
		return errors.Wrap(err, "invalid cue config")
	}

	hold := buildWakeHold(cfg)
	if hold != nil {
		defer hold.Close()
	}

	sessionMgr := session.NewManager(session.Config{
		TickInterval: cfg.TickInterval(),
		Defaults:     cfg.IntervalDefaults(),
	}, cues, hold)

	timerService := apiconnect.NewTimerService(sessionMgr)

	var opts []connect.HandlerOption
	if cfg.ControlEnabled() {
		opts = append(opts, connect.WithInterceptors(apiconnect.NewControlAuthInterceptor(cfg.Control.Token)))
	} else {
		zlog.Warn().Msg("Control token not configured, control procedures are open")
	}

	mux := http.NewServeMux()
	timerPath, timerHandler := apiconnect.NewTimerServiceHandler(timerService, opts...)
	mux.Handle(timerPath, timerHandler)

	// h2c (HTTP/2 cleartext) keeps notification streams multiplexed without TLS
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		// Finish the workout so subscribers receive the final record
		if _, err := sessionMgr.FinishWorkout(); err != nil && !errors.Is(err, session.ErrWorkoutFinished) {
			zlog.Error().Msgf("Failed to finish workout: %v", err)
		}
	case <-sessionMgr.Done():
		zlog.Info().Msg("Workout finished, shutting down...")
	case err := <-serverErrCh:
		sessionMgr.Close()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close session manager first to terminate active streams
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	record := sessionMgr.Record()
	zlog.Info().Msgf("Server stopped: workout_id=%s exercises=%d blocks=%d",
		record.ID, len(record.Exercises), record.BlockCount())

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// buildCues creates the emitter chain from config. No configured emitters means no cues.
func buildCues(configs []config.CueConfig) (*cue.Chain, error) {
	chain := cue.NewChain()
	for i, c := range configs {
		e, err := cue.New(c.Type, c.Settings)
		if err != nil {
			return nil, errors.Wrapf(err, "cues[%d]", i)
		}
		zlog.Info().Msgf("Cue emitter enabled: type=%s", e.Name())
		chain.Add(e)
	}
	return chain, nil
}

// buildWakeHold returns nil when the hold is disabled or the platform has no inhibitor.
func buildWakeHold(cfg *config.Config) *wakehold.Hold {
	if !cfg.WakeHoldEnabled() {
		zlog.Info().Msg("Wake hold disabled")
		return nil
	}
	inhibitor, err := wakelock.New()
	if err != nil {
		if errors.Is(err, wakelock.ErrUnsupported) {
			zlog.Warn().Msgf("Wake hold unavailable: %v", err)
		} else {
			zlog.Error().Msgf("Failed to create wake lock: %v", err)
		}
		return nil
	}
	return wakehold.New(inhibitor, wakehold.Config{RetryDelay: cfg.WakeHoldRetryDelay()})
}

// printCues prints available cue emitters.
func printCues() {
	fmt.Println("Available Cue Emitters:")
	registered := cue.GetRegistered()
	for _, name := range cue.RegisteredNames() {
		e := registered[name]()
		fmt.Printf("  %-12s - %s\n", e.Name(), e.Description())
	}
	fmt.Println("\nCue Events:")
	for _, name := range cue.Names() {
		fmt.Printf("  %s\n", name)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
