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

// InjectAdSpace appends a synthetic ad-exchange item to the layout list when
// adspace is enabled and the exchange reports a positive share of voice, so
// it competes for airtime as just another interrupt during priority
// resolution.
func InjectAdSpace(items []ScheduleItem, adExchangeEnabled bool, exchange AdExchangeClient) []ScheduleItem {
	if !adExchangeEnabled || exchange == nil {
		return items
	}
	sov := exchange.ShareOfVoice()
	if sov <= 0 {
		return items
	}
	adSpace := ScheduleItem{
		NodeKind:     NodeAdSpace,
		FromDT:       farPast,
		ToDT:         farFuture,
		IsInterrupt:  true,
		ShareOfVoice: sov,
		DurationHint: exchange.AverageAdDuration(),
	}
	return append(items, adSpace)
}
