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
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/kioskline/resolver/pkg/geo"
)

// ValidityFilterConfig controls the one exception to cache-validity
// checking: keeping the currently-playing layout alive across a schedule
// update.
type ValidityFilterConfig struct {
	ExpireModifiedLayouts   bool
	CurrentlyPlayingLayout int
}

// ValidityFilter decides which layouts are currently playable and separates
// out the default/splash item and the quarantined invalid ones.
type ValidityFilter struct {
	log   logr.Logger
	cache CacheManager
}

// NewValidityFilter builds a ValidityFilter over cache.
func NewValidityFilter(log logr.Logger, cache CacheManager) *ValidityFilter {
	return &ValidityFilter{log: log.WithName("validity"), cache: cache}
}

// Result is the validity filter's output.
type Result struct {
	Valid         []ScheduleItem
	Invalid       []ScheduleItem
	DefaultLayout *ScheduleItem
}

// Apply filters items down to the ones that are cache-valid, within their
// time window, and geo-active, extracting the default item separately.
func (f *ValidityFilter) Apply(items []ScheduleItem, now time.Time, fix geo.Fix, cfg ValidityFilterConfig) Result {
	var res Result

	for _, item := range items {
		if item.IsDefault() {
			d := item
			res.DefaultLayout = &d
			continue
		}

		if !f.isCacheValid(item, cfg) {
			res.Invalid = append(res.Invalid, item)
			continue
		}

		if !item.IsOverride {
			if now.Before(item.FromDT) || now.After(item.ToDT) {
				continue
			}
		}

		if item.IsGeoAware {
			if !item.GeoFence.Contains(fix) {
				continue
			}
		}

		res.Valid = append(res.Valid, item)
	}

	return res
}

// isCacheValid consults the cache manager, applying the "keep the running
// layout alive" exception and treating cache-manager errors as invalidity.
func (f *ValidityFilter) isCacheValid(item ScheduleItem, cfg ValidityFilterConfig) bool {
	if !cfg.ExpireModifiedLayouts && item.LayoutID == cfg.CurrentlyPlayingLayout {
		return true
	}

	filename := fmt.Sprintf("%d.xlf", item.LayoutID)
	valid, err := f.cache.IsValidPath(filename)
	if err != nil {
		f.log.Error(err, "cache manager error checking layout path, quarantining", "layoutID", item.LayoutID)
		return false
	}
	if !valid {
		return false
	}

	unsafe, err := f.cache.IsUnsafeLayout(item.LayoutID)
	if err != nil {
		f.log.Error(err, "cache manager error checking layout safety, quarantining", "layoutID", item.LayoutID)
		return false
	}
	if unsafe {
		return false
	}

	for _, dep := range item.Dependents {
		depValid, err := f.cache.IsValidPath(dep)
		if err != nil {
			f.log.Error(err, "cache manager error checking dependent, quarantining", "layoutID", item.LayoutID, "dependent", dep)
			return false
		}
		if !depValid {
			return false
		}
	}

	return true
}
