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

// Package resolver drives the schedule package's pipeline on a periodic
// tick and owns the single process-wide lock that protects the resulting
// state: the currently playable layouts, overlays, actions and due
// commands.
package resolver

import (
	"sync"
	"time"

	"github.com/kioskline/resolver/pkg/geo"
	"github.com/kioskline/resolver/pkg/schedule"
)

// State is the process-wide resolver state. Every field is guarded by mu;
// callers never touch the fields directly, only through State's methods or
// through Resolver, which embeds State and owns the tick loop.
type State struct {
	mu sync.Mutex

	rawLayouts  []schedule.ScheduleItem
	rawOverlays []schedule.ScheduleItem
	rawActions  []schedule.Action
	commands    []*schedule.ScheduleCommand

	layoutChangeActions  []*schedule.LayoutChangeAction
	overlayLayoutActions []*schedule.OverlayLayoutAction

	currentSchedule        []schedule.ScheduleItem
	currentOverlaySchedule []schedule.ScheduleItem
	currentActionsSchedule []schedule.Action
	currentDefaultLayout   *schedule.ScheduleItem
	invalidSchedule        []schedule.ScheduleItem

	currentlyPlayingLayoutID int
	lastScreenshotAt         time.Time
	lastGeoFix               geo.Fix
	refreshRequested         bool
	lastStatus               string
}

// AddLayoutChangeAction appends a player-injected layout override. Safe to
// call from any goroutine.
func (s *State) AddLayoutChangeAction(a *schedule.LayoutChangeAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layoutChangeActions = append(s.layoutChangeActions, a)
}

// AddOverlayLayoutAction appends a player-injected overlay override.
func (s *State) AddOverlayLayoutAction(a *schedule.OverlayLayoutAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayLayoutActions = append(s.overlayLayoutActions, a)
}

// SetAllActionsDownloaded clears DownloadRequired on every pending override
// action, making them eligible for materialization on the next tick.
func (s *State) SetAllActionsDownloaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.layoutChangeActions {
		a.DownloadRequired = false
	}
	for _, a := range s.overlayLayoutActions {
		a.DownloadRequired = false
	}
}

// RequestRefresh sets the refresh flag, which the next tick reads and
// clears. On its own it does not wake the loop; callers needing the
// channel wakeup too should go through Resolver.RequestImmediateTick
// rather than calling this directly.
func (s *State) RequestRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshRequested = true
}

// TakeRefreshRequested reports whether a refresh was requested since the
// last call, clearing the flag.
func (s *State) TakeRefreshRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	requested := s.refreshRequested
	s.refreshRequested = false
	return requested
}

// SetCurrentlyPlayingLayout records the layout ID the renderer is currently
// showing, used by the validity filter's "keep the running layout alive"
// exception.
func (s *State) SetCurrentlyPlayingLayout(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentlyPlayingLayoutID = id
}

// CurrentSchedule returns a copy of the resolved layout schedule.
func (s *State) CurrentSchedule() []schedule.ScheduleItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.ScheduleItem(nil), s.currentSchedule...)
}

// CurrentOverlaySchedule returns a copy of the resolved overlay schedule.
func (s *State) CurrentOverlaySchedule() []schedule.ScheduleItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.ScheduleItem(nil), s.currentOverlaySchedule...)
}

// CurrentActionsSchedule returns a copy of the currently active actions.
func (s *State) CurrentActionsSchedule() []schedule.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.Action(nil), s.currentActionsSchedule...)
}

// CurrentDefaultLayout returns the default/splash layout and whether one
// has ever been resolved.
func (s *State) CurrentDefaultLayout() (schedule.ScheduleItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentDefaultLayout == nil {
		return schedule.ScheduleItem{}, false
	}
	return *s.currentDefaultLayout, true
}

// InvalidSchedule returns a copy of the layouts currently quarantined by
// the validity filter.
func (s *State) InvalidSchedule() []schedule.ScheduleItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.ScheduleItem(nil), s.invalidSchedule...)
}

// LastStatus returns a human-readable diagnostic string for the most
// recent tick, populated even when that tick's resolution hit an error.
func (s *State) LastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}
