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

package geo

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
)

// RefreshMovementThresholdMeters is the distance a fix must move before the
// watcher requests a schedule refresh.
const RefreshMovementThresholdMeters = 100.0

// Source delivers coordinate updates and a status callback, mirroring a
// hardware driver's subscribe(on_position, on_status) interface. It is
// implemented by the geolocation hardware collaborator, out of scope here.
type Source interface {
	Subscribe(onPosition func(Fix), onStatus func(enabled bool)) error
}

// NoopSource is a Source that never reports a position, for deployments
// with no geolocation hardware attached. Subscribe always succeeds and
// never invokes either callback.
type NoopSource struct{}

// Subscribe implements Source.
func (NoopSource) Subscribe(func(Fix), func(bool)) error { return nil }

// Watcher adapts a raw coordinate Source into "the schedule may be stale"
// signals: it tracks the last reported fix and flips RefreshRequested when
// movement crosses RefreshMovementThresholdMeters. It is safe for
// concurrent use; onPosition may be invoked from the Source's own callback
// goroutine while LastFix/TakeRefreshRequested are read by the tick loop.
type Watcher struct {
	log logr.Logger

	mu               sync.Mutex
	haveFix          bool
	lastFix          Fix
	refreshRequested bool

	source  Source
	restart func() error
	notify  func()
}

// NewWatcher builds a Watcher over source. restart is invoked whenever the
// source reports itself disabled; its error is logged, never fatal.
func NewWatcher(log logr.Logger, source Source, restart func() error) *Watcher {
	return &Watcher{
		log:     log.WithName("geo-watcher"),
		source:  source,
		restart: restart,
	}
}

// OnRefreshRequested registers fn to be invoked, outside the watcher's lock,
// every time a position update sets the refresh-requested flag. The resolver
// loop wires this to its own immediate-tick trigger so a qualifying fix
// change short-circuits the tick wait instead of being picked up on the next
// scheduled tick.
func (w *Watcher) OnRefreshRequested(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = fn
}

// Start subscribes to the source. It returns once the initial subscription
// succeeds; updates then arrive on the source's own goroutine. Source has
// no unsubscribe, so cancelling ctx does not detach the watcher: updates
// delivered after that are still recorded.
func (w *Watcher) Start(ctx context.Context) error {
	err := w.source.Subscribe(w.onPosition, w.onStatus)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
	}()
	return nil
}

func (w *Watcher) onPosition(fix Fix) {
	if fix.IsUnknown() {
		return
	}

	w.mu.Lock()
	requested := false

	if !w.haveFix {
		w.haveFix = true
		w.lastFix = fix
		w.refreshRequested = true
		requested = true
		w.log.V(1).Info("first geo fix recorded", "lat", fix.Lat, "lon", fix.Lon)
	} else if d := DistanceMeters(w.lastFix, fix); d >= RefreshMovementThresholdMeters {
		w.lastFix = fix
		w.refreshRequested = true
		requested = true
		w.log.V(1).Info("geo fix moved past threshold", "meters", d)
	}

	fn := w.notify
	w.mu.Unlock()

	if requested && fn != nil {
		fn()
	}
}

func (w *Watcher) onStatus(enabled bool) {
	if enabled {
		return
	}
	w.log.Info("geo watcher reported disabled, attempting restart")
	if w.restart == nil {
		return
	}
	if err := w.restart(); err != nil {
		w.log.Error(err, "geo watcher restart failed")
	}
}

// LastFix returns the most recently recorded fix and whether one has ever
// been recorded.
func (w *Watcher) LastFix() (Fix, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFix, w.haveFix
}

// TakeRefreshRequested reports whether a refresh was requested since the
// last call, clearing the flag.
func (w *Watcher) TakeRefreshRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	requested := w.refreshRequested
	w.refreshRequested = false
	return requested
}
