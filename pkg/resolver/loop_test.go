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

package resolver_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kioskline/resolver/pkg/geo"
	"github.com/kioskline/resolver/pkg/resolver"
	"github.com/kioskline/resolver/pkg/schedule"
	"github.com/kioskline/resolver/pkg/schedule/fake"
)

// fakeGeoSource lets a test push fixes directly into a geo.Watcher.
type fakeGeoSource struct {
	onPosition func(geo.Fix)
}

func (f *fakeGeoSource) Subscribe(onPosition func(geo.Fix), _ func(bool)) error {
	f.onPosition = onPosition
	return nil
}

func (f *fakeGeoSource) push(fix geo.Fix) {
	if f.onPosition != nil {
		f.onPosition(fix)
	}
}

type eventCounters struct {
	newSchedule int32
	refresh     int32
	checks      int32
}

func (c *eventCounters) listeners() resolver.Listeners {
	return resolver.Listeners{
		OnNewScheduleAvailable: func() { atomic.AddInt32(&c.newSchedule, 1) },
		OnRefreshSchedule:      func() { atomic.AddInt32(&c.refresh, 1) },
		OnCheckComplete:        func() { atomic.AddInt32(&c.checks, 1) },
	}
}

func writeSchedule(dir, body string) string {
	path := filepath.Join(dir, "schedule.xml")
	Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
	return path
}

var _ = Describe("Resolver tick loop", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		dir    string
		wg     sync.WaitGroup
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		var err error
		dir, err = os.MkdirTemp("", "resolver-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cancel()
		wg.Wait()
		os.RemoveAll(dir)
	})

	startResolver := func(res *resolver.Resolver) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = res.Run(ctx)
		}()
	}

	It("falls back to the splash layout when no schedule file exists", func() {
		counters := &eventCounters{}
		res := resolver.New(logr.Discard(), resolver.Config{TickInterval: 20 * time.Millisecond}, resolver.Options{
			SchedulePath: filepath.Join(dir, "missing.xml"),
			Cache:        fake.NewCacheManager(),
		}, counters.listeners())
		startResolver(res)

		Eventually(func() schedule.NodeKind {
			sched := res.CurrentSchedule()
			if len(sched) == 0 {
				return ""
			}
			return sched[0].NodeKind
		}, time.Second, 10*time.Millisecond).Should(Equal(schedule.NodeSplash))
	})

	It("fires on_new_schedule_available once then settles into on_refresh_schedule", func() {
		writeSchedule(dir, `<schedule>
			<layout file="7.xml" fromdt="2000-01-01 00:00:00" todt="2100-01-01 00:00:00" priority="1"/>
		</schedule>`)

		counters := &eventCounters{}
		res := resolver.New(logr.Discard(), resolver.Config{TickInterval: 20 * time.Millisecond}, resolver.Options{
			SchedulePath: filepath.Join(dir, "schedule.xml"),
			Cache:        fake.NewCacheManager(),
		}, counters.listeners())
		startResolver(res)

		Eventually(func() int32 {
			return atomic.LoadInt32(&counters.newSchedule)
		}, time.Second, 10*time.Millisecond).Should(Equal(int32(1)))

		Eventually(func() int32 {
			return atomic.LoadInt32(&counters.refresh)
		}, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 1))

		Consistently(func() int32 {
			return atomic.LoadInt32(&counters.newSchedule)
		}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(int32(1)))
	})

	It("dispatches a due command exactly once", func() {
		now := time.Now().UTC()
		due := now.Add(time.Second).Format("2006-01-02 15:04:05")
		writeSchedule(dir, fmt.Sprintf(`<schedule>
			<layout file="7.xml" fromdt="2000-01-01 00:00:00" todt="2100-01-01 00:00:00"/>
			<command date="%s" code="touch /tmp/fired"/>
		</schedule>`, due))

		runner := &fake.CommandRunner{}
		res := resolver.New(logr.Discard(), resolver.Config{TickInterval: 20 * time.Millisecond}, resolver.Options{
			SchedulePath:  filepath.Join(dir, "schedule.xml"),
			Cache:         fake.NewCacheManager(),
			CommandRunner: runner,
		}, resolver.Listeners{})
		startResolver(res)

		Eventually(func() []string {
			return runner.Calls()
		}, 2*time.Second, 20*time.Millisecond).Should(Equal([]string{"touch /tmp/fired"}))

		Consistently(func() []string {
			return runner.Calls()
		}, 300*time.Millisecond, 20*time.Millisecond).Should(HaveLen(1))
	})

	It("changes schedule as the geo fix crosses a layout's fence", func() {
		writeSchedule(dir, `<schedule>
			<layout file="7.xml" fromdt="2000-01-01 00:00:00" todt="2100-01-01 00:00:00" isGeoAware="1"
				geoLocation='{"type":"Polygon","coordinates":[[[13.0,52.3],[13.8,52.3],[13.8,52.7],[13.0,52.7],[13.0,52.3]]]}'/>
		</schedule>`)

		src := &fakeGeoSource{}
		watcher := geo.NewWatcher(logr.Discard(), src, nil)

		counters := &eventCounters{}
		res := resolver.New(logr.Discard(), resolver.Config{TickInterval: 20 * time.Millisecond}, resolver.Options{
			SchedulePath: filepath.Join(dir, "schedule.xml"),
			Cache:        fake.NewCacheManager(),
			GeoWatcher:   watcher,
		}, counters.listeners())
		startResolver(res)

		// Outside the fence: the layout never resolves, only the default/empty set.
		src.push(geo.Fix{Lat: 48.8566, Lon: 2.3522})

		Eventually(func() []schedule.ScheduleItem {
			return res.CurrentSchedule()
		}, time.Second, 10*time.Millisecond).Should(BeEmpty())

		// Move inside the fence: the layout should now resolve.
		src.push(geo.Fix{Lat: 52.52, Lon: 13.405})

		Eventually(func() bool {
			sched := res.CurrentSchedule()
			for _, item := range sched {
				if item.LayoutID == 7 {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond).Should(BeTrue())
	})

	It("short-circuits the tick wait when the geo watcher reports a qualifying fix change", func() {
		writeSchedule(dir, `<schedule>
			<layout file="7.xml" fromdt="2000-01-01 00:00:00" todt="2100-01-01 00:00:00" isGeoAware="1"
				geoLocation='{"type":"Polygon","coordinates":[[[13.0,52.3],[13.8,52.3],[13.8,52.7],[13.0,52.7],[13.0,52.3]]]}'/>
		</schedule>`)

		src := &fakeGeoSource{}
		watcher := geo.NewWatcher(logr.Discard(), src, nil)

		// A long tick interval: if the geo signal did not short-circuit the
		// wait, the fence-gated layout would not resolve until this elapses.
		res := resolver.New(logr.Discard(), resolver.Config{TickInterval: 10 * time.Second}, resolver.Options{
			SchedulePath: filepath.Join(dir, "schedule.xml"),
			Cache:        fake.NewCacheManager(),
			GeoWatcher:   watcher,
		}, resolver.Listeners{})
		startResolver(res)

		// Let the immediate startup tick run first, with no fix yet: the
		// geo-fenced layout cannot resolve.
		Eventually(func() []schedule.ScheduleItem {
			return res.CurrentSchedule()
		}, time.Second, 10*time.Millisecond).Should(BeEmpty())

		// A fix inside the fence should wake the loop well before the 10s
		// tick interval elapses.
		src.push(geo.Fix{Lat: 52.52, Lon: 13.405})

		Eventually(func() bool {
			sched := res.CurrentSchedule()
			return len(sched) == 1 && sched[0].LayoutID == 7
		}, 500*time.Millisecond, 10*time.Millisecond).Should(BeTrue())
	})

	It("keeps the currently playing layout alive when its cache entry goes invalid without ExpireModifiedLayouts", func() {
		writeSchedule(dir, `<schedule>
			<layout file="7.xml" fromdt="2000-01-01 00:00:00" todt="2100-01-01 00:00:00"/>
		</schedule>`)

		cache := fake.NewCacheManager()
		res := resolver.New(logr.Discard(), resolver.Config{TickInterval: 20 * time.Millisecond, ExpireModifiedLayouts: false}, resolver.Options{
			SchedulePath: filepath.Join(dir, "schedule.xml"),
			Cache:        cache,
		}, resolver.Listeners{})
		startResolver(res)

		Eventually(func() bool {
			sched := res.CurrentSchedule()
			return len(sched) == 1 && sched[0].LayoutID == 7
		}, time.Second, 10*time.Millisecond).Should(BeTrue())

		res.SetCurrentlyPlayingLayout(7)
		cache.SetValid("7.xlf", false)

		Consistently(func() bool {
			sched := res.CurrentSchedule()
			return len(sched) == 1 && sched[0].LayoutID == 7
		}, 200*time.Millisecond, 20*time.Millisecond).Should(BeTrue())
	})
})
