/*
Copyright 2025 The Kioskline Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package schedule

import (
	"context"
	"os/exec"
	"time"

	"github.com/expr-lang/expr"
	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

// CommandWindow is the dispatch window width: a command due within
// [now, now+CommandWindow] and not yet run is fired.
const CommandWindow = 10 * time.Second

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// shellRunner runs a command's opaque code via the platform shell, used when
// no CommandRunner is injected.
type shellRunner struct{}

func (shellRunner) Run(ctx context.Context, code string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", code)
	return cmd.Run()
}

// DefaultCommandRunner is the stdlib-backed CommandRunner used when the
// caller does not supply one.
var DefaultCommandRunner CommandRunner = shellRunner{}

// Dispatcher fires commands whose due time falls in the current tick
// window, using a fresh goroutine per dispatch so a slow or hung command can
// never stall the tick loop.
type Dispatcher struct {
	log    logr.Logger
	runner CommandRunner
}

// NewDispatcher builds a Dispatcher. A nil runner defaults to shelling out.
func NewDispatcher(log logr.Logger, runner CommandRunner) *Dispatcher {
	if runner == nil {
		runner = DefaultCommandRunner
	}
	return &Dispatcher{log: log.WithName("dispatcher"), runner: runner}
}

// DispatchContext carries the evaluation context exposed to a command's
// SkipIf expression.
type DispatchContext struct {
	Hour            int
	Weekday         int
	IsDefaultPlaying bool
}

func (c DispatchContext) asEnv() map[string]interface{} {
	return map[string]interface{}{
		"hour":               c.Hour,
		"weekday":            c.Weekday,
		"is_default_playing": c.IsDefaultPlaying,
	}
}

// Dispatch scans commands for ones due within [now, now+CommandWindow],
// fires each exactly once, and re-arms any with a CronExpr for its next
// occurrence. It mutates commands in place (HasRun, DueAt) and returns the
// commands actually fired this tick, for observability.
func (d *Dispatcher) Dispatch(ctx context.Context, commands []*ScheduleCommand, now time.Time, dctx DispatchContext) []*ScheduleCommand {
	windowEnd := now.Add(CommandWindow)
	var fired []*ScheduleCommand

	for _, cmd := range commands {
		if cmd.HasRun {
			continue
		}
		if cmd.DueAt.Before(now) || cmd.DueAt.After(windowEnd) {
			continue
		}

		if cmd.SkipIf != "" && d.shouldSkip(cmd.SkipIf, dctx) {
			d.log.V(1).Info("command skipped by SkipIf condition", "code", cmd.Code)
			continue
		}

		cmd.HasRun = true
		fired = append(fired, cmd)
		d.fire(ctx, cmd)

		if cmd.CronExpr != "" {
			d.rearm(cmd, now)
		}
	}

	return fired
}

// fire runs the command's code in its own goroutine so a hung process can
// never stall the tick loop. Dispatch errors are logged and never retried
// or fatal: the command stays marked HasRun regardless of outcome.
func (d *Dispatcher) fire(ctx context.Context, cmd *ScheduleCommand) {
	code := cmd.Code
	go func() {
		if err := d.runner.Run(ctx, code); err != nil {
			d.log.Error(err, "command dispatch failed", "code", code)
		}
	}()
}

func (d *Dispatcher) shouldSkip(skipIf string, dctx DispatchContext) bool {
	program, err := expr.Compile(skipIf, expr.Env(dctx.asEnv()))
	if err != nil {
		d.log.Error(err, "failed to compile SkipIf expression, not skipping", "expr", skipIf)
		return false
	}
	out, err := expr.Run(program, dctx.asEnv())
	if err != nil {
		d.log.Error(err, "failed to evaluate SkipIf expression, not skipping", "expr", skipIf)
		return false
	}
	skip, ok := out.(bool)
	if !ok {
		d.log.Info("SkipIf expression did not evaluate to a boolean, not skipping", "expr", skipIf)
		return false
	}
	return skip
}

// rearm recomputes a recurring command's next due time from its cron
// expression and clears HasRun so it fires again on that occurrence.
func (d *Dispatcher) rearm(cmd *ScheduleCommand, now time.Time) {
	sched, err := cronParser.Parse(cmd.CronExpr)
	if err != nil {
		d.log.Error(err, "invalid cron expression on recurring command, leaving one-shot", "code", cmd.Code, "cron", cmd.CronExpr)
		return
	}
	cmd.DueAt = sched.Next(now)
	cmd.HasRun = false
}
