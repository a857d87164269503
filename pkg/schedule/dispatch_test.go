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

package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskline/resolver/pkg/schedule"
	"github.com/kioskline/resolver/pkg/schedule/fake"
)

func TestDispatch_FiresCommandDueWithinWindow(t *testing.T) {
	runner := &fake.CommandRunner{}
	d := schedule.NewDispatcher(logr.Discard(), runner)

	now := time.Now()
	cmd := &schedule.ScheduleCommand{Code: "reboot", DueAt: now.Add(2 * time.Second)}

	fired := d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{})
	require.Len(t, fired, 1)
	assert.True(t, cmd.HasRun)

	require.Eventually(t, func() bool {
		return len(runner.Calls()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"reboot"}, runner.Calls())
}

func TestDispatch_SkipsCommandAlreadyRun(t *testing.T) {
	runner := &fake.CommandRunner{}
	d := schedule.NewDispatcher(logr.Discard(), runner)

	now := time.Now()
	cmd := &schedule.ScheduleCommand{Code: "reboot", DueAt: now, HasRun: true}

	fired := d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{})
	assert.Empty(t, fired)
}

func TestDispatch_SkipsCommandOutsideWindow(t *testing.T) {
	runner := &fake.CommandRunner{}
	d := schedule.NewDispatcher(logr.Discard(), runner)

	now := time.Now()
	cmd := &schedule.ScheduleCommand{Code: "reboot", DueAt: now.Add(time.Hour)}

	fired := d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{})
	assert.Empty(t, fired)
	assert.False(t, cmd.HasRun)
}

func TestDispatch_SkipIfExpressionSuppressesDispatch(t *testing.T) {
	runner := &fake.CommandRunner{}
	d := schedule.NewDispatcher(logr.Discard(), runner)

	now := time.Now()
	cmd := &schedule.ScheduleCommand{Code: "reboot", DueAt: now, SkipIf: "hour == 3"}

	fired := d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{Hour: 3})
	assert.Empty(t, fired)
	assert.False(t, cmd.HasRun)

	fired = d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{Hour: 4})
	require.Len(t, fired, 1)
}

func TestDispatch_RecurringCommandRearmsAfterFiring(t *testing.T) {
	runner := &fake.CommandRunner{}
	d := schedule.NewDispatcher(logr.Discard(), runner)

	now := time.Now()
	cmd := &schedule.ScheduleCommand{Code: "reboot", DueAt: now, CronExpr: "0 0 * * *"}

	fired := d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{})
	require.Len(t, fired, 1)

	assert.False(t, cmd.HasRun)
	assert.True(t, cmd.DueAt.After(now))
}

func TestDispatch_InvalidCronLeavesCommandOneShot(t *testing.T) {
	runner := &fake.CommandRunner{}
	d := schedule.NewDispatcher(logr.Discard(), runner)

	now := time.Now()
	cmd := &schedule.ScheduleCommand{Code: "reboot", DueAt: now, CronExpr: "not-a-cron-expr"}

	fired := d.Dispatch(context.Background(), []*schedule.ScheduleCommand{cmd}, now, schedule.DispatchContext{})
	require.Len(t, fired, 1)
	assert.True(t, cmd.HasRun)
}
