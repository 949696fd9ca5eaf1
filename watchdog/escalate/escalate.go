package escalate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evaafi/oracle-watchdog/watchdog/log"
	"github.com/evaafi/oracle-watchdog/watchdog/retry"
	"github.com/evaafi/oracle-watchdog/watchdog/telemetry"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

// CommandResult is the outcome of one recovery command.
type CommandResult struct {
	Command string
	Output  Output
	Err     error
}

func (r CommandResult) OK() bool {
	return r.Err == nil
}

// Report lists the commands that were started, in order.
type Report struct {
	Results []CommandResult
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

type Executor struct {
	runner   Runner
	notifier types.Notifier
	settle   time.Duration
	delay    time.Duration
	sleep    retry.SleepFunc
	metrics  *telemetry.Metrics
}

type Option func(*Executor)

func WithSleep(sleep retry.SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor waits settle before the first command and delay between
// consecutive commands.
func NewExecutor(runner Runner, notifier types.Notifier, settle, delay time.Duration, opts ...Option) *Executor {
	e := &Executor{
		runner:   runner,
		notifier: notifier,
		settle:   settle,
		delay:    delay,
		sleep:    retry.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Escalate runs every command once, in order. A failing command is reported
// and the next one still runs. Cancelling ctx stops before the next command.
func (e *Executor) Escalate(ctx context.Context, commands []string) Report {
	var report Report

	e.metrics.IncrEscalation()
	e.notifier.Notify(ctx, "Executing commands")

	if err := e.sleep(ctx, e.settle); err != nil {
		log.Errorf("escalation cancelled before the first command: %v", err)
		return report
	}

	for i, command := range commands {
		if i > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				log.Errorf("escalation cancelled, %d command(s) not run: %v", len(commands)-i, err)
				return report
			}
		}

		res := e.run(ctx, command)
		report.Results = append(report.Results, res)
		e.metrics.IncrCommand(res.OK())
		e.notifier.Notify(ctx, describe(res))
	}

	return report
}

func (e *Executor) run(ctx context.Context, command string) (res CommandResult) {
	res.Command = command

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("runner panicked: %v", r)
		}
	}()

	log.Debugf("running recovery command: %s", command)
	res.Output, res.Err = e.runner.Run(ctx, command)

	return res
}

func describe(res CommandResult) string {
	var b strings.Builder

	if res.OK() {
		b.WriteString("Executing: " + res.Command + " Stdout: " + trim(res.Output.Stdout))
	} else {
		b.WriteString("Failed to execute command: " + res.Command + " " + res.Err.Error())
	}
	if stderr := trim(res.Output.Stderr); stderr != "" {
		b.WriteString(" Stderr: " + stderr)
	}

	return b.String()
}

func trim(s string) string {
	return strings.TrimRight(s, "\r\n")
}
