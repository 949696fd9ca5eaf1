package telemetry

import (
	"sort"
	"strconv"
	"time"

	metrics "github.com/armon/go-metrics"
)

const ServiceName = "oracle_watchdog"

// Metrics records counters for a single watchdog run in memory.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	m    *metrics.Metrics
	sink *metrics.InmemSink
}

func New() (*Metrics, error) {
	// one interval comfortably covers a whole run
	sink := metrics.NewInmemSink(time.Hour, 2*time.Hour)

	cfg := metrics.DefaultConfig(ServiceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	cfg.TimerGranularity = time.Millisecond

	m, err := metrics.New(cfg, sink)
	if err != nil {
		return nil, err
	}

	return &Metrics{m: m, sink: sink}, nil
}

func (t *Metrics) IncrAttempt() {
	if t == nil {
		return
	}
	t.m.IncrCounter([]string{"attempts"}, 1)
}

func (t *Metrics) IncrVote(source string, confirmed bool) {
	if t == nil {
		return
	}
	t.m.IncrCounterWithLabels([]string{"votes"}, 1, []metrics.Label{
		{Name: "source", Value: source},
		{Name: "confirmed", Value: strconv.FormatBool(confirmed)},
	})
}

func (t *Metrics) IncrVerdict(verdict string) {
	if t == nil {
		return
	}
	t.m.IncrCounterWithLabels([]string{"verdicts"}, 1, []metrics.Label{{Name: "verdict", Value: verdict}})
}

func (t *Metrics) IncrEscalation() {
	if t == nil {
		return
	}
	t.m.IncrCounter([]string{"escalations"}, 1)
}

func (t *Metrics) IncrCommand(ok bool) {
	if t == nil {
		return
	}
	t.m.IncrCounterWithLabels([]string{"commands"}, 1, []metrics.Label{{Name: "ok", Value: strconv.FormatBool(ok)}})
}

func (t *Metrics) MeasurePoll(source string, start time.Time) {
	if t == nil {
		return
	}
	t.m.MeasureSinceWithLabels([]string{"poll"}, start, []metrics.Label{{Name: "source", Value: source}})
}

// Counter is the total of one counter series.
type Counter struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Counters returns every counter series recorded so far, sorted by name.
func (t *Metrics) Counters() []Counter {
	if t == nil {
		return nil
	}

	byHash := make(map[string]*Counter)
	for _, interval := range t.sink.Data() {
		interval.RLock()
		for hash, sampled := range interval.Counters {
			c, ok := byHash[hash]
			if !ok {
				c = &Counter{Name: sampled.Name, Labels: sampled.DisplayLabels}
				byHash[hash] = c
			}
			c.Value += sampled.Sum
		}
		interval.RUnlock()
	}

	out := make([]Counter, 0, len(byHash))
	for _, c := range byHash {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return labelString(out[i].Labels) < labelString(out[j].Labels)
	})

	return out
}

// Sum adds up every series of the named counter, ignoring labels.
func (t *Metrics) Sum(name string) float64 {
	var total float64
	for _, c := range t.Counters() {
		if c.Name == ServiceName+"."+name {
			total += c.Value
		}
	}
	return total
}

func labelString(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var s string
	for _, k := range keys {
		s += k + "=" + labels[k] + ";"
	}
	return s
}
