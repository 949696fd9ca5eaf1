package daemon

import (
	"time"

	"github.com/evaafi/oracle-watchdog/watchdog/escalate"
	"github.com/evaafi/oracle-watchdog/watchdog/registry"
	"github.com/evaafi/oracle-watchdog/watchdog/retry"
	"github.com/evaafi/oracle-watchdog/watchdog/source"
	"github.com/evaafi/oracle-watchdog/watchdog/telemetry"
)

type Option func(*Watchdog)

// WithSources replaces the HTTP sources built from the configuration.
func WithSources(sources ...source.Source) Option {
	return func(w *Watchdog) {
		w.sources = sources
	}
}

func WithRunner(runner escalate.Runner) Option {
	return func(w *Watchdog) {
		w.runner = runner
	}
}

// WithSleep is used for both the retry delay and the escalation delays.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(w *Watchdog) {
		w.sleep = sleep
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) {
		w.now = now
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(w *Watchdog) {
		w.metrics = m
	}
}

// WithPool skips loading the pool file.
func WithPool(pool *registry.Pool) Option {
	return func(w *Watchdog) {
		w.pool = pool
	}
}
