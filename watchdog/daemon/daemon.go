package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/evaafi/oracle-watchdog/watchdog/config"
	"github.com/evaafi/oracle-watchdog/watchdog/escalate"
	"github.com/evaafi/oracle-watchdog/watchdog/log"
	"github.com/evaafi/oracle-watchdog/watchdog/quorum"
	"github.com/evaafi/oracle-watchdog/watchdog/registry"
	"github.com/evaafi/oracle-watchdog/watchdog/retry"
	"github.com/evaafi/oracle-watchdog/watchdog/source"
	"github.com/evaafi/oracle-watchdog/watchdog/telemetry"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

// ErrOracleDead is returned by an attempt whose verdict was Dead.
var ErrOracleDead = errors.New("oracle judged dead")

// State is a step of Watchdog.Run.
type State byte

const (
	StatePolling State = iota
	StateSucceeded
	StateEscalating
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateEscalating:
		return "escalating"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", byte(s))
	}
}

// Incident is the record of one watchdog run.
type Incident struct {
	Attempts    int
	Verdicts    []types.Verdict
	Diagnostics []string
	Transitions []State
	Escalation  *escalate.Report
}

func (i *Incident) enter(s State) {
	log.Debugf("watchdog state: %s", s)
	i.Transitions = append(i.Transitions, s)
}

// Escalated reports whether recovery commands were started.
func (i *Incident) Escalated() bool {
	return i.Escalation != nil
}

// Watchdog runs the checks for one oracle and escalates when they fail.
type Watchdog struct {
	cfg      *config.Config
	notifier types.Notifier
	identity types.OracleIdentity

	pool     *registry.Pool
	sources  []source.Source
	runner   escalate.Runner
	poller   *source.Poller
	executor *escalate.Executor

	sleep   retry.SleepFunc
	now     func() time.Time
	metrics *telemetry.Metrics
}

// New resolves the monitored oracle and wires every component of a run.
// An oracle missing from the pool is reported as ErrInvalidOracle.
func New(ctx context.Context, cfg *config.Config, notifier types.Notifier, opts ...Option) (*Watchdog, error) {
	w := &Watchdog{
		cfg:      cfg,
		notifier: notifier,
		sleep:    retry.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.pool == nil {
		pool, err := registry.Load(cfg.PoolFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load oracle pool: %w", err)
		}
		w.pool = pool
	}

	identity, err := w.pool.Lookup(cfg.Oracle)
	if err != nil {
		return nil, errorsmod.Wrapf(config.ErrInvalidOracle, "%v", err)
	}
	w.identity = identity
	log.Debugf("monitoring %s with %d key(s) from pool %s", identity.Address, len(identity.PubKeys), w.pool.Name)

	if w.sources == nil {
		sources, err := source.FromConfig(cfg, identity.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to build sources: %w", err)
		}
		w.sources = sources
	}

	if w.runner == nil {
		w.runner = escalate.NewShellRunner(cfg.Shell)
	}

	w.poller = source.NewPoller(cfg.TriggerTime, w.now, notifier, w.metrics)
	w.executor = escalate.NewExecutor(w.runner, notifier, cfg.SettleTime, cfg.SleepTime,
		escalate.WithSleep(w.sleep), escalate.WithMetrics(w.metrics))

	return w, nil
}

func (w *Watchdog) Identity() types.OracleIdentity {
	return w.identity
}

// Run checks the oracle until it is confirmed alive or the attempt budget
// is spent, then escalates at most once. It always ends in StateDone.
func (w *Watchdog) Run(ctx context.Context) *Incident {
	inc := new(Incident)
	inc.enter(StatePolling)

	cfg := retry.FixedRetryConfig(w.cfg.MaxAttempts, w.cfg.SleepTime)
	cfg.Sleep = w.sleep

	err := retry.Do(ctx, cfg, func(attempt int) error {
		return w.attempt(ctx, attempt, inc)
	}, retry.AlwaysRetryable)

	switch {
	case err == nil:
		inc.enter(StateSucceeded)
		w.notifier.Notify(ctx, "Oracle is alive")
	case ctx.Err() != nil:
		log.Errorf("watchdog stopped before a verdict: %v", ctx.Err())
	case errors.Is(err, retry.ErrExhausted):
		log.Errorf("oracle %s failed %d checks", w.identity.Address, inc.Attempts)
		inc.enter(StateEscalating)
		report := w.executor.Escalate(ctx, w.cfg.Commands)
		inc.Escalation = &report
	default:
		log.Errorf("watchdog run failed: %v", err)
	}

	inc.enter(StateDone)
	return inc
}

// attempt is one PollAll and Decide. Panics count as a failed attempt.
func (w *Watchdog) attempt(ctx context.Context, n int, inc *Incident) (err error) {
	inc.Attempts = n
	w.metrics.IncrAttempt()

	verdict := types.Dead
	defer func() {
		if r := recover(); r != nil {
			verdict = types.Dead
			err = fmt.Errorf("attempt %d panicked: %v", n, r)
		}

		inc.Verdicts = append(inc.Verdicts, verdict)
		w.metrics.IncrVerdict(verdict.String())
	}()

	results := w.poller.PollAll(ctx, w.sources, w.identity)
	for _, r := range results {
		inc.Diagnostics = append(inc.Diagnostics, r.Diagnostics...)
	}

	verdict = quorum.Decide(results)
	log.Infof("attempt %d/%d: oracle %s is %s", n, w.cfg.MaxAttempts, w.identity.Address, verdict)

	if verdict != types.Alive {
		return fmt.Errorf("attempt %d: %w", n, ErrOracleDead)
	}

	return nil
}
