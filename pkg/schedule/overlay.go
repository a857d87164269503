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
	"time"

	"github.com/kioskline/resolver/pkg/geo"
)

// ResolveOverlays applies the same cache/geo/date-window validity filtering
// used for layouts, then picks override items over the top priority band
// over the remaining base items, independent of the layout schedule's
// grouping and interleaving pipeline.
//
// An invalid dependent invalidates the whole overlay item outright: the
// validity filter is reused as-is so a missing or quarantined dependent can
// never surface a half-valid overlay.
func ResolveOverlays(filter *ValidityFilter, items []ScheduleItem, now time.Time, fix geo.Fix, cfg ValidityFilterConfig) []ScheduleItem {
	res := filter.Apply(items, now, fix, cfg)

	var override, priority, base []ScheduleItem
	for _, item := range res.Valid {
		switch {
		case item.IsOverride:
			override = append(override, item)
		case item.Priority >= 1:
			priority = append(priority, item)
		default:
			base = append(base, item)
		}
	}

	if len(override) > 0 {
		return override
	}
	priority = topPriorityBand(priority)
	if len(priority) > 0 {
		return priority
	}
	return base
}
