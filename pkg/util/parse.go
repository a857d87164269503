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

// Package util holds small, dependency-free parsing helpers shared by the
// schedule loader. The degrade-to-default behavior here is what lets a
// malformed attribute on one item fall back safely instead of failing the
// whole document.
package util

import (
	"strconv"
	"strings"
	"time"
)

// ScheduleTimeLayout is the invariant-culture timestamp format used
// throughout the schedule document: "yyyy-MM-dd HH:mm:ss".
const ScheduleTimeLayout = "2006-01-02 15:04:05"

// ParseIntDefault parses s as a base-10 integer, returning def on any
// failure (including an empty string) instead of propagating an error. Used
// for attributes that should degrade to a safe default on malformity.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// ParseBoolFlag parses a "1"/"0" (or "true"/"false") attribute, returning
// def on any other value.
func ParseBoolFlag(s string, def bool) bool {
	switch strings.TrimSpace(s) {
	case "1", "true", "True", "TRUE":
		return true
	case "0", "false", "False", "FALSE":
		return false
	default:
		return def
	}
}

// ParseScheduleTime parses an invariant-culture schedule timestamp. ok is
// false if s is empty or malformed; callers substitute the item's window
// default (-inf/+inf) in that case.
func ParseScheduleTime(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	parsed, err := time.ParseInLocation(ScheduleTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// SplitNonEmpty splits a comma-separated list, dropping empty/whitespace
// entries, as the schedule document's "dependents" attribute requires.
func SplitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
