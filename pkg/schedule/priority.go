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

// secondsPerHour is the share-of-voice accounting budget: interrupts
// accumulate committed airtime against a rolling hour.
const secondsPerHour = 3600

// minFillDuration is the floor substituted for a pathological duration_hint
// (<= 0) during normal fill, to avoid an infinite loop.
const minFillDuration = 10

// DurationSource resolves the effective duration of an item whose
// DurationHint is zero, consulting the cache manager's last-observed
// duration with a fallback of 60 seconds.
type DurationSource interface {
	LastDuration(layoutID int, fallback int) int
}

// ResolvePriority partitions items by is_interrupt, keeps only the top
// priority band in each half, accumulates interrupts against their
// share-of-voice, fills the remaining hour with normals, and interleaves the
// two into a single ordered result. defaultLayout is substituted whenever
// normals would otherwise be empty, and again as the final fallback if the
// whole resolution yields nothing.
func ResolvePriority(items []ScheduleItem, durations DurationSource, defaultLayout *ScheduleItem) []ScheduleItem {
	normals, interrupts := splitByInterrupt(items)
	normals = topPriorityBand(normals)
	interrupts = topPriorityBand(interrupts)

	if len(interrupts) == 0 {
		if len(normals) == 0 {
			return defaultSlice(defaultLayout)
		}
		return normals
	}

	if len(normals) == 0 {
		if defaultLayout != nil {
			normals = []ScheduleItem{*defaultLayout}
		}
	}

	for i := range interrupts {
		interrupts[i].CommittedDuration = 0
	}
	for i := range normals {
		normals[i].CommittedDuration = 0
	}

	resolvedInterrupt, interruptSeconds := accumulateInterrupts(interrupts, durations)
	resolvedNormal := fillNormals(normals, durations, secondsPerHour-interruptSeconds)

	resolved := interleave(resolvedNormal, resolvedInterrupt)
	if len(resolved) == 0 {
		return defaultSlice(defaultLayout)
	}
	return resolved
}

func defaultSlice(defaultLayout *ScheduleItem) []ScheduleItem {
	if defaultLayout == nil {
		return nil
	}
	return []ScheduleItem{*defaultLayout}
}

func splitByInterrupt(items []ScheduleItem) (normals, interrupts []ScheduleItem) {
	for _, item := range items {
		if item.IsInterrupt {
			interrupts = append(interrupts, item)
		} else {
			normals = append(normals, item)
		}
	}
	return normals, interrupts
}

// topPriorityBand keeps only the items sharing the maximum priority value,
// preserving their relative input order.
func topPriorityBand(items []ScheduleItem) []ScheduleItem {
	if len(items) == 0 {
		return nil
	}
	max := items[0].Priority
	for _, item := range items[1:] {
		if item.Priority > max {
			max = item.Priority
		}
	}
	var out []ScheduleItem
	for _, item := range items {
		if item.Priority == max {
			out = append(out, item)
		}
	}
	return out
}

func effectiveDuration(item ScheduleItem, durations DurationSource) int {
	if item.DurationHint > 0 {
		return item.DurationHint
	}
	if durations == nil {
		return 60
	}
	return durations.LastDuration(item.LayoutID, 60)
}

// accumulateInterrupts round-robins the interrupt set, adding each item's
// effective duration to its committed_duration on every visit, until every
// interrupt has met its share_of_voice.
func accumulateInterrupts(interrupts []ScheduleItem, durations DurationSource) (resolved []ScheduleItem, totalSeconds int) {
	if len(interrupts) == 0 {
		return nil, 0
	}

	satisfied := make([]bool, len(interrupts))
	remaining := len(interrupts)
	// safety bound on the total number of visits across all interrupts.
	maxVisits := 10_000_000

	for visits := 0; remaining > 0 && visits < maxVisits; {
		for i := range interrupts {
			if satisfied[i] {
				continue
			}
			d := effectiveDuration(interrupts[i], durations)
			if d <= 0 {
				d = minFillDuration
			}
			interrupts[i].CommittedDuration += d
			totalSeconds += d
			resolved = append(resolved, interrupts[i])
			visits++

			if interrupts[i].CommittedDuration >= interrupts[i].ShareOfVoice {
				satisfied[i] = true
				remaining--
			}
			if remaining == 0 {
				break
			}
		}
	}
	return resolved, totalSeconds
}

// fillNormals round-robins the normal set, appending items until the hour's
// remaining budget (after interrupts) is exhausted.
func fillNormals(normals []ScheduleItem, durations DurationSource, secondsRemaining int) []ScheduleItem {
	if len(normals) == 0 || secondsRemaining <= 0 {
		return nil
	}

	var resolved []ScheduleItem
	idx := 0
	// safety bound against pathological inputs.
	maxIterations := 10_000_000
	for iter := 0; secondsRemaining > 0 && iter < maxIterations; iter++ {
		item := normals[idx%len(normals)]
		d := effectiveDuration(item, durations)
		if d <= 0 {
			d = minFillDuration
		}
		resolved = append(resolved, item)
		secondsRemaining -= d
		idx++
	}
	return resolved
}

// interleave blends resolved normals and resolved interrupts deterministically.
// When interrupts outnumber the pick count, every slot gets an interrupt
// (step = 1) rather than dividing by zero or skipping insertion.
func interleave(normals, interrupts []ScheduleItem) []ScheduleItem {
	n, m := len(normals), len(interrupts)
	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		return append([]ScheduleItem(nil), interrupts...)
	}
	if m == 0 {
		return append([]ScheduleItem(nil), normals...)
	}

	pick := n
	if m > pick {
		pick = m
	}

	normalStep := ceilDiv(pick, n)
	interruptStep := 1
	if m <= pick {
		interruptStep = pick / m
		if interruptStep == 0 {
			interruptStep = 1
		}
	}

	out := make([]ScheduleItem, 0, pick*2)
	normalIdx, interruptIdx := 0, 0
	for i := 0; i < pick; i++ {
		if i%normalStep == 0 {
			out = append(out, normals[normalIdx%n])
			normalIdx++
		}
		if i%interruptStep == 0 && interruptIdx < m {
			out = append(out, interrupts[interruptIdx])
			interruptIdx++
		}
	}
	return out
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}
