// Package log provides the structured logger shared by the scheduler,
// the host client, the worker, and the dashboard.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

const (
	defaultRotateMaxSizeMB = 10
	defaultRotateMaxBackup = 5
)

// Config holds logging configuration. Setting RotateFile routes output
// through a rotating file writer and takes precedence over Output,
// which remains available for tests and for logging straight to
// stdout/stderr.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	RotateFile       string
	RotateMaxSizeMB  int
	RotateMaxBackups int
}

// Init initializes the global logger, routing it through a rotating
// file writer (10 MiB x 5 backups by default) when cfg.RotateFile is
// set — every scheduler and worker instance logs to a single named
// file this way rather than wiring lumberjack up at each call site.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := resolveOutput(cfg)

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func resolveOutput(cfg Config) io.Writer {
	if cfg.RotateFile != "" {
		maxSize := cfg.RotateMaxSizeMB
		if maxSize == 0 {
			maxSize = defaultRotateMaxSizeMB
		}
		maxBackups := cfg.RotateMaxBackups
		if maxBackups == 0 {
			maxBackups = defaultRotateMaxBackup
		}
		return &lumberjack.Logger{
			Filename:   cfg.RotateFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		}
	}
	if cfg.Output != nil {
		return cfg.Output
	}
	return os.Stdout
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithHost creates a child logger scoped to a single host.
func WithHost(hostName string) zerolog.Logger {
	return Logger.With().Str("host", hostName).Logger()
}

// WithExperiment creates a child logger scoped to a single experiment.
func WithExperiment(experiment string) zerolog.Logger {
	return Logger.With().Str("experiment", experiment).Logger()
}

// WithJob creates a child logger scoped to a single job.
func WithJob(jobID string) zerolog.Logger {
	return Logger.With().Str("job_id", jobID).Logger()
}

// WithRequestID creates a child logger carrying a correlation id, used
// to trace a single dashboard signal or gRPC call through the log
// stream end to end.
func WithRequestID(requestID string) zerolog.Logger {
	return Logger.With().Str("request_id", requestID).Logger()
}
