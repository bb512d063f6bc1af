/*
Package log provides structured logging for the scheduler using zerolog.

The log package wraps zerolog to provide JSON or console structured
logging with component-specific child loggers, configurable log levels,
and helper functions for common logging patterns.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all packages without passing

Context Loggers:
  - WithComponent: tag logs with the emitting subsystem (scheduler, dashboard, worker, console)
  - WithHost / WithExperiment / WithJob: tag logs with the entity a log line concerns
  - WithRequestID: correlate a dashboard signal or gRPC call across the log stream

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		RotateFile: "scheduler.scheduler.log",
	})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Str("host", h.Name).Int("demand", job.Demand).Msg("launched job")

# Log Rotation

Setting Config.RotateFile routes output through
gopkg.in/natefinch/lumberjack.v2 instead of the plain Output writer:
10 MiB per file, 5 backups kept by default. The schedule command
writes every component's output, dashboard included, to one file,
scheduler.log, in its --log-dir; there is no separate dashboard log
file. The work command writes worker.log the same way.

# Design Patterns

Global Logger Pattern: a single package-level Logger, initialized once
at process start, read by every package without being passed around
explicitly.

Context Logger Pattern: create a child logger scoped to a component or
entity once, then log through it — avoids repeating the same fields at
every call site.
*/
package log
