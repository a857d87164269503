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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskline/resolver/pkg/schedule"
)

func TestMaterializeLayoutOverrides_SkipsServicedAndPending(t *testing.T) {
	now := time.Now()
	served := &schedule.LayoutChangeAction{LayoutID: 1, ActionID: 1, CreatedAt: now}
	served.SetPlayed()
	pending := &schedule.LayoutChangeAction{LayoutID: 2, ActionID: 2, CreatedAt: now, DownloadRequired: true}
	ready := &schedule.LayoutChangeAction{LayoutID: 3, ActionID: 3, CreatedAt: now}

	out := schedule.MaterializeLayoutOverrides(nil, []*schedule.LayoutChangeAction{served, pending, ready})

	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].LayoutID)
	assert.True(t, out[0].IsOverride)
	assert.Equal(t, schedule.NodeLayout, out[0].NodeKind)
}

func TestMaterializeOverlayOverrides_SkipsServicedAndPending(t *testing.T) {
	served := &schedule.OverlayLayoutAction{LayoutID: 1, ActionID: 1}
	served.SetPlayed()
	pending := &schedule.OverlayLayoutAction{LayoutID: 2, ActionID: 2, DownloadRequired: true}
	ready := &schedule.OverlayLayoutAction{LayoutID: 3, ActionID: 3}

	out := schedule.MaterializeOverlayOverrides(nil, []*schedule.OverlayLayoutAction{served, pending, ready})

	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].LayoutID)
	assert.True(t, out[0].IsOverride)
	assert.Equal(t, schedule.NodeOverlay, out[0].NodeKind)
}

func TestResolveOverrides_OverrideBeatsEverythingElse(t *testing.T) {
	items := []schedule.ScheduleItem{
		{LayoutID: 10, Priority: 9},
		{LayoutID: 11, IsOverride: true},
		{LayoutID: 12, Priority: 9, IsInterrupt: true},
	}

	resolved, ok := schedule.ResolveOverrides(items)
	require.True(t, ok)
	require.Len(t, resolved, 1)
	assert.Equal(t, 11, resolved[0].LayoutID)
}

func TestResolveOverrides_NoOverridesFallsThrough(t *testing.T) {
	items := []schedule.ScheduleItem{{LayoutID: 10, Priority: 9}}
	resolved, ok := schedule.ResolveOverrides(items)
	assert.False(t, ok)
	assert.Empty(t, resolved)
}

func TestPruneServicedLayoutActions_RemovesOnlyServiced(t *testing.T) {
	served := &schedule.LayoutChangeAction{LayoutID: 1}
	served.SetPlayed()
	unserviced := &schedule.LayoutChangeAction{LayoutID: 2}

	survivors := schedule.PruneServicedLayoutActions([]*schedule.LayoutChangeAction{served, unserviced})
	require.Len(t, survivors, 1)
	assert.Equal(t, 2, survivors[0].LayoutID)
}

func TestPruneServicedOverlayActions_RemovesOnlyServiced(t *testing.T) {
	served := &schedule.OverlayLayoutAction{LayoutID: 1}
	served.SetPlayed()
	unserviced := &schedule.OverlayLayoutAction{LayoutID: 2}

	survivors := schedule.PruneServicedOverlayActions([]*schedule.OverlayLayoutAction{served, unserviced})
	require.Len(t, survivors, 1)
	assert.Equal(t, 2, survivors[0].LayoutID)
}

func TestMatchPlayedLayoutOverride_MarksMatchingActionServiced(t *testing.T) {
	a1 := &schedule.LayoutChangeAction{LayoutID: 5, ActionID: 100}
	a2 := &schedule.LayoutChangeAction{LayoutID: 6, ActionID: 101}

	played := schedule.ScheduleItem{LayoutID: 5, ActionID: 100}
	schedule.MatchPlayedLayoutOverride([]*schedule.LayoutChangeAction{a1, a2}, played)

	assert.True(t, a1.IsServiced())
	assert.False(t, a2.IsServiced())
}

func TestMatchPlayedOverlayOverride_MarksMatchingActionServiced(t *testing.T) {
	a1 := &schedule.OverlayLayoutAction{LayoutID: 5, ActionID: 100}
	a2 := &schedule.OverlayLayoutAction{LayoutID: 6, ActionID: 101}

	played := schedule.ScheduleItem{LayoutID: 5, ActionID: 100}
	schedule.MatchPlayedOverlayOverride([]*schedule.OverlayLayoutAction{a1, a2}, played)

	assert.True(t, a1.IsServiced())
	assert.False(t, a2.IsServiced())
}
