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

package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/kioskline/resolver/pkg/geo"
	"github.com/kioskline/resolver/pkg/prommetrics"
	"github.com/kioskline/resolver/pkg/schedule"
)

// TickInterval is the fixed wake-up period for the resolver loop.
const TickInterval = 10 * time.Second

// Config carries the tick loop's tunables. Zero value is usable: it ticks
// every TickInterval, never expires the running layout, never takes
// screenshots and never injects ad space.
type Config struct {
	TickInterval          time.Duration
	ScreenshotInterval    time.Duration
	ExpireModifiedLayouts bool
	AdExchangeEnabled     bool
}

// Resolver owns the process-wide State and the single worker goroutine
// that advances it once per tick.
type Resolver struct {
	State

	log       logr.Logger
	cfg       Config
	listeners Listeners

	loader     *schedule.Loader
	validity   *schedule.ValidityFilter
	dispatcher *schedule.Dispatcher
	cache      schedule.CacheManager
	adExchange schedule.AdExchangeClient
	screenshot schedule.ScreenshotUploader
	geoWatcher *geo.Watcher

	now func() time.Time

	refreshCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Options collects Resolver's external collaborators. AdExchange,
// Screenshot and GeoWatcher may be nil to disable the corresponding
// behavior (e.g. a nil ScreenshotUploader disables screenshots regardless
// of ScreenshotInterval); a nil CommandRunner falls back to
// schedule.DefaultCommandRunner. Cache must be non-nil.
type Options struct {
	SchedulePath  string
	Cache         schedule.CacheManager
	AdExchange    schedule.AdExchangeClient
	Screenshot    schedule.ScreenshotUploader
	CommandRunner schedule.CommandRunner
	GeoWatcher    *geo.Watcher
}

// New builds a Resolver ready to Run. cfg.TickInterval defaults to
// TickInterval when zero.
func New(log logr.Logger, cfg Config, opts Options, listeners Listeners) *Resolver {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = TickInterval
	}
	return &Resolver{
		log:        log.WithName("resolver"),
		cfg:        cfg,
		listeners:  listeners,
		loader:     schedule.NewLoader(log, opts.SchedulePath),
		validity:   schedule.NewValidityFilter(log, opts.Cache),
		dispatcher: schedule.NewDispatcher(log, opts.CommandRunner),
		cache:      opts.Cache,
		adExchange: opts.AdExchange,
		screenshot: opts.Screenshot,
		geoWatcher: opts.GeoWatcher,
		now:        time.Now,
		refreshCh:  make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// RequestImmediateTick wakes the loop before its next scheduled tick,
// without resetting the base interval. It also records the refresh in
// State, so ResolverState.refresh_requested reflects why the tick fired
// early.
func (r *Resolver) RequestImmediateTick() {
	r.RequestRefresh()
	select {
	case r.refreshCh <- struct{}{}:
	default:
	}
}

// Stop signals the loop to exit after completing any in-flight tick. It
// does not cancel in-flight command dispatches.
func (r *Resolver) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Run drives the tick loop until ctx is cancelled or Stop is called. It
// starts the geo watcher if one was supplied.
func (r *Resolver) Run(ctx context.Context) error {
	defer close(r.doneCh)

	if r.geoWatcher != nil {
		r.geoWatcher.OnRefreshRequested(r.RequestImmediateTick)
		if err := r.geoWatcher.Start(ctx); err != nil {
			return fmt.Errorf("starting geo watcher: %w", err)
		}
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stopCh:
			return nil
		case <-timer.C:
		case <-r.refreshCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		r.safeTick(ctx)
		timer.Reset(r.cfg.TickInterval)
	}
}

// safeTick runs one tick, recovering from any panic so a single bad
// resolution can never take down the worker goroutine.
func (r *Resolver) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			r.lastStatus = fmt.Sprintf("tick panic: %v", rec)
			r.mu.Unlock()
			r.log.Info("recovered from panic in tick", "panic", rec)
		}
	}()
	r.tick(ctx)
}

func (r *Resolver) currentFix() geo.Fix {
	if r.geoWatcher == nil {
		return geo.Fix{}
	}
	fix, _ := r.geoWatcher.LastFix()
	return fix
}

func (r *Resolver) tick(ctx context.Context) {
	start := r.now()
	now := start
	fix := r.currentFix()

	if r.geoWatcher != nil && r.geoWatcher.TakeRefreshRequested() {
		r.log.V(1).Info("tick triggered by geo movement")
	}
	if r.TakeRefreshRequested() {
		r.log.V(1).Info("tick triggered by refresh request")
	}

	r.mu.Lock()
	// Release the lock if resolution panics, so safeTick's recover handler,
	// which takes the lock itself, does not deadlock.
	locked := true
	defer func() {
		if locked {
			r.mu.Unlock()
		}
	}()

	doc := r.loader.Load(now, fix)
	r.commands = mergeCommands(r.commands, doc.Commands)
	r.rawActions = doc.Actions
	r.rawLayouts = doc.Layouts
	r.rawOverlays = doc.Overlays

	r.layoutChangeActions = schedule.PruneServicedLayoutActions(r.layoutChangeActions)
	r.overlayLayoutActions = schedule.PruneServicedOverlayActions(r.overlayLayoutActions)

	rawLayouts := schedule.MaterializeLayoutOverrides(r.rawLayouts, r.layoutChangeActions)
	rawLayouts = schedule.InjectAdSpace(rawLayouts, r.cfg.AdExchangeEnabled, r.adExchange)
	rawOverlays := schedule.MaterializeOverlayOverrides(r.rawOverlays, r.overlayLayoutActions)

	vcfg := schedule.ValidityFilterConfig{
		ExpireModifiedLayouts:  r.cfg.ExpireModifiedLayouts,
		CurrentlyPlayingLayout: r.currentlyPlayingLayoutID,
	}

	layoutResult := r.validity.Apply(rawLayouts, now, fix, vcfg)
	r.invalidSchedule = layoutResult.Invalid

	var resolvedLayouts []schedule.ScheduleItem
	if overridden, ok := schedule.ResolveOverrides(layoutResult.Valid); ok {
		resolvedLayouts = overridden
	} else {
		grouped := schedule.GroupCycles(layoutResult.Valid)
		resolvedLayouts = schedule.ResolvePriority(grouped, r.cache, layoutResult.DefaultLayout)
	}
	for _, item := range resolvedLayouts {
		if item.IsOverride {
			schedule.MatchPlayedLayoutOverride(r.layoutChangeActions, item)
		}
	}
	r.layoutChangeActions = schedule.PruneServicedLayoutActions(r.layoutChangeActions)

	resolvedOverlays := schedule.ResolveOverlays(r.validity, rawOverlays, now, fix, vcfg)
	for _, item := range resolvedOverlays {
		if item.IsOverride {
			schedule.MatchPlayedOverlayOverride(r.overlayLayoutActions, item)
		}
	}
	r.overlayLayoutActions = schedule.PruneServicedOverlayActions(r.overlayLayoutActions)

	changed := forceChange(r.currentSchedule, resolvedLayouts, r.currentOverlaySchedule, resolvedOverlays)

	r.currentSchedule = resolvedLayouts
	r.currentOverlaySchedule = resolvedOverlays
	r.currentActionsSchedule = r.rawActions
	r.currentDefaultLayout = layoutResult.DefaultLayout

	dctx := schedule.DispatchContext{
		Hour:             now.Hour(),
		Weekday:          int(now.Weekday()),
		IsDefaultPlaying: len(resolvedLayouts) > 0 && resolvedLayouts[0].IsDefault(),
	}
	fired := r.dispatcher.Dispatch(ctx, r.commands, now, dctx)

	screenshotDue := r.cfg.ScreenshotInterval > 0 && r.screenshot != nil &&
		now.Sub(r.lastScreenshotAt) >= r.cfg.ScreenshotInterval
	if screenshotDue {
		r.lastScreenshotAt = now
	}

	r.lastStatus = fmt.Sprintf("ok: %d layouts, %d overlays, %d invalid, tick at %s",
		len(resolvedLayouts), len(resolvedOverlays), len(r.invalidSchedule), now.Format(time.RFC3339))

	locked = false
	r.mu.Unlock()

	event := EventRefreshSchedule
	if changed {
		event = EventNewScheduleAvailable
	}
	prommetrics.RecordChangeEvent(string(event))
	prommetrics.RecordResolvedCounts(len(resolvedLayouts), len(resolvedOverlays))
	prommetrics.RecordInvalidLayoutCount(len(layoutResult.Invalid))
	r.listeners.emit(event)

	for range fired {
		prommetrics.RecordCommandDispatch("ok")
	}

	if screenshotDue {
		if err := r.screenshot.SnapAndSend(ctx); err != nil {
			r.log.Error(err, "screenshot upload failed")
			prommetrics.RecordScreenshotUpload("error")
		} else {
			prommetrics.RecordScreenshotUpload("ok")
		}
	}

	prommetrics.RecordTick(r.now().Sub(start).Seconds())
	r.listeners.emit(EventCheckComplete)
}

// mergeCommands reconciles a freshly parsed command list against the
// previous tick's commands, keyed by (code, schedule_id): a command already
// tracked keeps its HasRun/DueAt state (which may have advanced past the
// document's literal date via a cron re-arm) instead of resetting every
// tick the document is reloaded.
func mergeCommands(existing []*schedule.ScheduleCommand, fresh []schedule.ScheduleCommand) []*schedule.ScheduleCommand {
	type key struct {
		code       string
		scheduleID int
	}
	byKey := make(map[key]*schedule.ScheduleCommand, len(existing))
	for _, c := range existing {
		byKey[key{c.Code, c.ScheduleID}] = c
	}

	merged := make([]*schedule.ScheduleCommand, 0, len(fresh))
	for _, f := range fresh {
		k := key{f.Code, f.ScheduleID}
		if prev, ok := byKey[k]; ok {
			merged = append(merged, prev)
			continue
		}
		c := f
		merged = append(merged, &c)
	}
	return merged
}

// forceChange reports whether the layout or overlay schedule meaningfully
// changed between ticks, by identity rather than by value.
func forceChange(oldLayouts, newLayouts, oldOverlays, newOverlays []schedule.ScheduleItem) bool {
	if len(oldLayouts) == 0 {
		return true
	}
	newSet := identitySet(newLayouts)
	for _, item := range oldLayouts {
		if _, ok := newSet[item.Identity()]; !ok {
			return true
		}
	}
	if len(oldOverlays) != len(newOverlays) {
		return true
	}
	newOverlaySet := identitySet(newOverlays)
	for _, item := range oldOverlays {
		if _, ok := newOverlaySet[item.Identity()]; !ok {
			return true
		}
	}
	return false
}

func identitySet(items []schedule.ScheduleItem) map[schedule.IdentityKey]struct{} {
	set := make(map[schedule.IdentityKey]struct{}, len(items))
	for _, item := range items {
		set[item.Identity()] = struct{}{}
	}
	return set
}
