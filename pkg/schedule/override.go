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

import "time"

// MaterializeLayoutOverrides turns pending, unserviced layout-change actions
// into synthetic override ScheduleItems and appends them to items. Actions
// whose DownloadRequired is true are left pending; they are not yet
// materialized.
func MaterializeLayoutOverrides(items []ScheduleItem, actions []*LayoutChangeAction) []ScheduleItem {
	out := items
	for _, a := range actions {
		if a.IsServiced() || a.DownloadRequired {
			continue
		}
		out = append(out, ScheduleItem{
			LayoutID:   a.LayoutID,
			ActionID:   a.ActionID,
			NodeKind:   NodeLayout,
			FromDT:     a.CreatedAt.Add(-time.Second),
			ToDT:       farFuture,
			Priority:   0,
			IsOverride: true,
		})
	}
	return out
}

// MaterializeOverlayOverrides is the overlay equivalent of
// MaterializeLayoutOverrides: its synthetic items have an open [-inf, +inf]
// window.
func MaterializeOverlayOverrides(items []ScheduleItem, actions []*OverlayLayoutAction) []ScheduleItem {
	out := items
	for _, a := range actions {
		if a.IsServiced() || a.DownloadRequired {
			continue
		}
		out = append(out, ScheduleItem{
			LayoutID:   a.LayoutID,
			ActionID:   a.ActionID,
			NodeKind:   NodeOverlay,
			FromDT:     farPast,
			ToDT:       farFuture,
			Priority:   0,
			IsOverride: true,
		})
	}
	return out
}

// ResolveOverrides applies the "overrides are exclusive" rule: if any
// surviving item is an override, it and only its override siblings form the
// resolved schedule, bypassing priority/interrupt/cycle resolution entirely.
// ok is false when no override is present and the caller should fall
// through to cycle grouping and priority resolution.
func ResolveOverrides(items []ScheduleItem) (resolved []ScheduleItem, ok bool) {
	for _, item := range items {
		if item.IsOverride {
			resolved = append(resolved, item)
		}
	}
	return resolved, len(resolved) > 0
}

// PruneServicedLayoutActions removes actions already consumed: it is run at
// the start of every tick and again whenever an action is matched against a
// played item. It performs a deferred-removal pass (collect survivors into
// a new slice) rather than mutating the slice while iterating it.
func PruneServicedLayoutActions(actions []*LayoutChangeAction) []*LayoutChangeAction {
	survivors := make([]*LayoutChangeAction, 0, len(actions))
	for _, a := range actions {
		if !a.IsServiced() {
			survivors = append(survivors, a)
		}
	}
	return survivors
}

// PruneServicedOverlayActions is the overlay equivalent of
// PruneServicedLayoutActions.
func PruneServicedOverlayActions(actions []*OverlayLayoutAction) []*OverlayLayoutAction {
	survivors := make([]*OverlayLayoutAction, 0, len(actions))
	for _, a := range actions {
		if !a.IsServiced() {
			survivors = append(survivors, a)
		}
	}
	return survivors
}

// MatchPlayedLayoutOverride marks the action backing a played override
// layout item as serviced, so the next PruneServicedLayoutActions pass
// drops it.
func MatchPlayedLayoutOverride(actions []*LayoutChangeAction, played ScheduleItem) {
	for _, a := range actions {
		if a.ActionID == played.ActionID && a.LayoutID == played.LayoutID {
			a.SetPlayed()
			return
		}
	}
}

// MatchPlayedOverlayOverride is the overlay equivalent of
// MatchPlayedLayoutOverride.
func MatchPlayedOverlayOverride(actions []*OverlayLayoutAction, played ScheduleItem) {
	for _, a := range actions {
		if a.ActionID == played.ActionID && a.LayoutID == played.LayoutID {
			a.SetPlayed()
			return
		}
	}
}
