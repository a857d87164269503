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

// Event names the tick loop emits. Observers register callback slots at
// construction rather than subscribing to a generic event bus; there is no
// payload, since every listener is expected to read the state it cares
// about off the Resolver itself.
type Event string

const (
	// EventNewScheduleAvailable fires when the previous layout set was
	// empty, when a previously resolved layout or overlay is missing from
	// the new set, or when the overlay count changed. Layouts added next
	// to all of the previous ones do not count as a change.
	EventNewScheduleAvailable Event = "on_new_schedule_available"
	// EventRefreshSchedule fires on every tick that does not fire
	// EventNewScheduleAvailable.
	EventRefreshSchedule Event = "on_refresh_schedule"
	// EventCheckComplete fires once per tick after the lock is released,
	// regardless of whether the schedule changed.
	EventCheckComplete Event = "on_check_complete"
)

// Listeners holds the callback slots a caller wires up before starting the
// loop. A nil slot is simply not invoked.
type Listeners struct {
	OnNewScheduleAvailable func()
	OnRefreshSchedule      func()
	OnCheckComplete        func()
}

func (l Listeners) emit(e Event) {
	var fn func()
	switch e {
	case EventNewScheduleAvailable:
		fn = l.OnNewScheduleAvailable
	case EventRefreshSchedule:
		fn = l.OnRefreshSchedule
	case EventCheckComplete:
		fn = l.OnCheckComplete
	}
	if fn != nil {
		fn()
	}
}
