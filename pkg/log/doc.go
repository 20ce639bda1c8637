/*
Package log provides structured logging for the VJ Bus fleet using zerolog.

Every process in the fleet — the Process Manager, the Audio Analyzer, and
any other worker built on pkg/workerrt — shares this package for its logs.
It wraps zerolog rather than wrapping a new logging abstraction: a single
package-level Logger, initialized once via Init, and a small set of child-
logger helpers for the two contexts that recur across every component:
the originating worker, and that worker's current instance_id.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	log.Info("bus starting")

	wl := log.WithInstance("audio-analyzer", instanceID)
	wl.Warn().Str("device", name).Msg("device disappeared, falling back to default")

# Levels

Debug is for per-frame audio feature dumps and command-dispatch tracing;
Info is the default production level; Warn marks conditions a human should
notice (stale heartbeat, degraded mode); Error marks a HandlerError or
FatalError transition; Fatal exits the process and is reserved for startup
failures before the Worker Runtime has bound any channel.
*/
package log
