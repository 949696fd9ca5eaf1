package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/evaafi/oracle-watchdog/watchdog/log"
	"github.com/evaafi/oracle-watchdog/watchdog/telemetry"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
	"github.com/evaafi/oracle-watchdog/watchdog/verifier"
)

// Poller turns sources into poll results for a single attempt.
type Poller struct {
	maxAge   time.Duration
	now      func() time.Time
	notifier types.Notifier
	metrics  *telemetry.Metrics
}

func NewPoller(maxAge time.Duration, now func() time.Time, notifier types.Notifier, metrics *telemetry.Metrics) *Poller {
	if now == nil {
		now = time.Now
	}

	return &Poller{
		maxAge:   maxAge,
		now:      now,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Poll never returns a failure to the caller; fetch errors and panics are
// carried in the result and never confirm liveness.
func (p *Poller) Poll(ctx context.Context, src Source, identity types.OracleIdentity) (result types.PollResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result.Vote = types.SourceVote{Source: result.Source}
			result.Err = fmt.Errorf("source %s panicked: %v", result.Source, r)
			result.Diagnostics = nil
		}

		p.metrics.MeasurePoll(result.Source, start)
		p.metrics.IncrVote(result.Source, result.Confirms())

		if result.Err != nil {
			log.Debugf("poll %s failed: %v", result.Source, result.Err)
		}
	}()

	name := src.Name()
	result.Source = name
	result.Vote = types.SourceVote{Source: name}
	result.Role = src.Role()

	readings, err := src.GetPrices(ctx)
	if err != nil {
		result.Err = err
		return result
	}
	if len(readings) == 0 {
		result.Err = fmt.Errorf("source %s returned no prices", name)
		return result
	}

	reading := readings[0]
	reading.Source = name

	result.Vote = verifier.Verify(reading, identity, p.now(), p.maxAge, src.Scheme())
	if !result.Vote.TimestampValid {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Timestamp %s triggered", name))
	}
	if !result.Vote.SignatureValid {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Invalid %s price sign!!", name))
	}

	return result
}

// PollAll polls every source concurrently and returns the results in the
// order of sources. Diagnostics are emitted afterwards in the same order.
func (p *Poller) PollAll(ctx context.Context, sources []Source, identity types.OracleIdentity) []types.PollResult {
	// keyed by position, names are not guaranteed unique
	collected := cmap.New[types.PollResult]()

	var g errgroup.Group
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			key := strconv.Itoa(i)
			defer func() {
				if r := recover(); r != nil {
					collected.Set(key, types.PollResult{Err: fmt.Errorf("source %d panicked: %v", i, r)})
				}
			}()

			collected.Set(key, p.Poll(ctx, src, identity))
			return nil
		})
	}
	// Poll never fails, Wait only joins.
	_ = g.Wait()

	results := make([]types.PollResult, 0, len(sources))
	for i := range sources {
		r, _ := collected.Get(strconv.Itoa(i))
		results = append(results, r)
	}

	for _, r := range results {
		for _, line := range r.Diagnostics {
			p.notifier.Notify(ctx, line)
		}
	}

	return results
}
