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

// Package schedule holds the data model and the resolution pipeline that
// turns a parsed schedule document plus injected overrides into the set of
// layouts, overlays, actions and commands that are allowed to play right
// now.
package schedule

import (
	"time"

	"github.com/kioskline/resolver/pkg/geo"
)

// NodeKind identifies what a ScheduleItem represents.
type NodeKind string

const (
	NodeDefault  NodeKind = "default"
	NodeLayout   NodeKind = "layout"
	NodeOverlay  NodeKind = "overlay"
	NodeSplash   NodeKind = "splash"
	NodeAdSpace  NodeKind = "adspace"
)

// emptySentinelLayoutID marks index 0 of a cycle parent's children list: the
// slot reserved for the parent itself.
const emptySentinelLayoutID = -1

// ScheduleItem is a single candidate layout (or overlay) in a schedule.
type ScheduleItem struct {
	LayoutID   int
	ScheduleID int
	ActionID   int

	NodeKind NodeKind

	FromDT time.Time
	ToDT   time.Time

	Priority int

	IsOverride bool

	// IsInterrupt is derived: true iff ShareOfVoice > 0. Set by the loader
	// and re-derived defensively wherever an item is synthesized.
	IsInterrupt  bool
	ShareOfVoice int

	// DurationHint is in seconds; 0 means "ask the cache manager".
	DurationHint int

	IsGeoAware bool
	GeoFence   geo.Fence

	IsCyclePlayback bool
	CycleGroupKey   string
	CyclePlayCount  int

	Dependents []string

	// CycleChildren is non-empty only on a cycle parent. Index 0 is always
	// the empty sentinel (see emptySentinelItem).
	CycleChildren []ScheduleItem

	// CommittedDuration is a transient accumulator used only inside the
	// priority/interrupt resolver; it is reset to zero at the start of every
	// resolution pass and has no meaning outside of it.
	CommittedDuration int
}

// IsDefault reports whether this item is the fallback default/splash layout.
func (i ScheduleItem) IsDefault() bool {
	return i.NodeKind == NodeDefault || i.NodeKind == NodeSplash
}

// emptySentinelItem reserves cycle_children[0] for the parent slot itself.
func emptySentinelItem() ScheduleItem {
	return ScheduleItem{LayoutID: emptySentinelLayoutID, NodeKind: NodeLayout}
}

// IdentityKey is the tuple used for change detection: two items are the
// "same" schedule entry iff these five fields match.
type IdentityKey struct {
	LayoutID   int
	ScheduleID int
	ActionID   int
	FromDT     time.Time
	ToDT       time.Time
}

// Identity returns this item's change-detection key.
func (i ScheduleItem) Identity() IdentityKey {
	return IdentityKey{
		LayoutID:   i.LayoutID,
		ScheduleID: i.ScheduleID,
		ActionID:   i.ActionID,
		FromDT:     i.FromDT,
		ToDT:       i.ToDT,
	}
}

// ScheduleCommand is a shell command the player must fire at a specific
// time, optionally on a recurring cron schedule.
type ScheduleCommand struct {
	DueAt      time.Time
	Code       string
	ScheduleID int
	HasRun     bool

	// CronExpr, when non-empty, re-arms this command (HasRun reset, DueAt
	// recomputed) after every dispatch instead of treating it as one-shot.
	CronExpr string

	// SkipIf is an optional expr-lang expression; if it evaluates to true at
	// dispatch time the command is skipped for this window without being
	// marked HasRun, so it is retried on the next window.
	SkipIf string
}

// Action is a player-level directive gated by priority, time window and
// geofence; only the highest-priority time-and-geo-valid actions survive the
// loader's watermark filter and are exposed as CurrentActionsSchedule.
type Action struct {
	Priority int
	FromDT   time.Time
	ToDT     time.Time

	IsGeoAware bool
	GeoFence   geo.Fence

	Payload string
}

// IsTimeValid reports whether now falls within [FromDT, ToDT].
func (a Action) IsTimeValid(now time.Time) bool {
	return !now.Before(a.FromDT) && !now.After(a.ToDT)
}

// Ad is ad-exchange creative metadata; IsGeoActive answers whether the ad
// may serve under the current location fix.
type Ad struct {
	ID              string
	AverageDuration int
	GeoFence        geo.Fence
	IsGeoAware      bool
}

// IsGeoActive reports whether the ad may serve under fix.
func (a Ad) IsGeoActive(fix geo.Fix) bool {
	if !a.IsGeoAware {
		return true
	}
	return a.GeoFence.Contains(fix)
}

// LayoutChangeAction is a player-injected override instructing the resolver
// to switch to a specific layout, bypassing the normal schedule.
type LayoutChangeAction struct {
	LayoutID         int
	CreatedAt        time.Time
	ActionID         int
	DownloadRequired bool

	played   bool
	serviced bool
}

// SetPlayed marks this action as having been matched against a played item.
func (a *LayoutChangeAction) SetPlayed() {
	a.played = true
	a.serviced = true
}

// IsServiced reports whether this action has already been consumed.
func (a *LayoutChangeAction) IsServiced() bool {
	return a.serviced
}

// OverlayLayoutAction is the overlay equivalent of LayoutChangeAction.
type OverlayLayoutAction struct {
	LayoutID         int
	ActionID         int
	DownloadRequired bool

	serviced bool
}

// SetPlayed marks this action as having been matched against a played item.
func (a *OverlayLayoutAction) SetPlayed() {
	a.serviced = true
}

// IsServiced reports whether this action has already been consumed.
func (a *OverlayLayoutAction) IsServiced() bool {
	return a.serviced
}
