// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or "file"
	Level  string // "debug", "info", "warn", "error"
	File   string // log file path (used when Output is "file")
}

var (
	fileMu  sync.Mutex
	logFile *os.File
)

// Init initializes the global zerolog logger with the given configuration.
// Console output is coloured only when it is a terminal.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	var logger zerolog.Logger
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		logger = consoleLogger(os.Stdout, level)
	case "stderr":
		logger = consoleLogger(os.Stderr, level)
	default:
		if cfg.File == "" {
			return errors.New("log file path is required for file output")
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		swapLogFile(f)
		logger = jsonLogger(f, level)
	}

	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return nil
}

// Close closes the log file opened by Init, if any.
func Close() error {
	return swapLogFile(nil)
}

func swapLogFile(f *os.File) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	var err error
	if logFile != nil {
		err = logFile.Close()
	}
	logFile = f
	return err
}

func consoleLogger(out *os.File, level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(out),
	}
	if level > zerolog.DebugLevel {
		return zerolog.New(w).With().Timestamp().Logger()
	}

	// Caller only at debug
	w.PartsOrder = []string{"time", "level", "message", "caller"}
	w.FormatCaller = func(i interface{}) string {
		s, _ := i.(string)
		return "(" + s + ")"
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func jsonLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	ctx := zerolog.New(out).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// shortCaller keeps the last directory and file name of the caller.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
