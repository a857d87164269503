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
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/kioskline/resolver/pkg/geo"
	"github.com/kioskline/resolver/pkg/util"
)

var farPast = time.Unix(0, 0).UTC()
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Document is the loader's output: layouts, overlays, commands and actions,
// already split by node kind. Actions have already passed the priority
// watermark filter; layout/overlay validity and geofencing happen
// downstream in the validity filter.
type Document struct {
	Layouts  []ScheduleItem
	Overlays []ScheduleItem
	Commands []ScheduleCommand
	Actions  []Action
}

// rawDocument is the permissive XML shape: every attribute is decoded as a
// string so a malformed value degrades per-field instead of failing
// xml.Unmarshal for the whole document.
type rawDocument struct {
	XMLName  xml.Name        `xml:"schedule"`
	Layouts  []rawLayoutItem `xml:"layout"`
	Defaults []rawLayoutItem `xml:"default"`
	Commands []rawCommand    `xml:"command"`
	Overlays struct {
		Items []rawLayoutItem `xml:"overlay"`
	} `xml:"overlays"`
	Actions struct {
		Items []rawAction `xml:"action"`
	} `xml:"actions"`
}

type rawLayoutItem struct {
	File           string   `xml:"file,attr"`
	ScheduleID     string   `xml:"scheduleid,attr"`
	FromDT         string   `xml:"fromdt,attr"`
	ToDT           string   `xml:"todt,attr"`
	Priority       string   `xml:"priority,attr"`
	Dependents     string   `xml:"dependents,attr"`
	DependentFiles []string `xml:"dependents>file"`
	IsGeoAware     string   `xml:"isGeoAware,attr"`
	GeoLocation    string   `xml:"geoLocation,attr"`
	ShareOfVoice   string   `xml:"shareOfVoice,attr"`
	Duration       string   `xml:"duration,attr"`
	CyclePlayback  string   `xml:"cyclePlayback,attr"`
	GroupKey       string   `xml:"groupKey,attr"`
	PlayCount      string   `xml:"playCount,attr"`
}

type rawCommand struct {
	Date       string `xml:"date,attr"`
	Code       string `xml:"code,attr"`
	ScheduleID string `xml:"scheduleid,attr"`
	CronExpr   string `xml:"cron,attr"`
	SkipIf     string `xml:"skipIf,attr"`
}

type rawAction struct {
	Priority    string `xml:"priority,attr"`
	FromDT      string `xml:"fromdt,attr"`
	ToDT        string `xml:"todt,attr"`
	IsGeoAware  string `xml:"isGeoAware,attr"`
	GeoLocation string `xml:"geoLocation,attr"`
	Payload     string `xml:",innerxml"`
}

// Loader parses a schedule document from disk (or an empty one if the file
// is missing) into a Document.
type Loader struct {
	log  logr.Logger
	path string
}

// NewLoader builds a Loader reading from path.
func NewLoader(log logr.Logger, path string) *Loader {
	return &Loader{log: log.WithName("loader"), path: path}
}

// Load reads and parses the schedule document, applying the action
// priority watermark against now/fix. A missing file or an unparsable
// document both degrade to SplashDocument rather than returning an error.
func (l *Loader) Load(now time.Time, fix geo.Fix) *Document {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Error(err, "error reading schedule file, falling back to empty document", "path", l.path)
		}
		return SplashDocument()
	}
	return l.parse(data, now, fix)
}

// LoadReader is Load's testable counterpart: it parses from an already-open
// reader instead of a path.
func (l *Loader) LoadReader(r io.Reader, now time.Time, fix geo.Fix) *Document {
	data, err := io.ReadAll(r)
	if err != nil {
		l.log.Error(err, "error reading schedule document")
		return SplashDocument()
	}
	return l.parse(data, now, fix)
}

func (l *Loader) parse(data []byte, now time.Time, fix geo.Fix) *Document {
	var raw rawDocument
	if err := xml.Unmarshal(data, &raw); err != nil {
		l.log.Error(err, "schedule document failed to parse, falling back to empty document")
		return SplashDocument()
	}

	doc := &Document{}

	for i, r := range raw.Defaults {
		item, ok := l.convertLayoutItem(r, NodeDefault)
		if !ok {
			l.log.Info("dropping unparsable default item", "index", i)
			continue
		}
		// The default item ignores its window entirely.
		item.FromDT = farPast
		item.ToDT = farFuture
		item.Priority = 0
		doc.Layouts = append(doc.Layouts, item)
	}

	for i, r := range raw.Layouts {
		item, ok := l.convertLayoutItem(r, NodeLayout)
		if !ok {
			l.log.Info("dropping unparsable layout item", "index", i)
			continue
		}
		doc.Layouts = append(doc.Layouts, item)
	}

	for i, r := range raw.Overlays.Items {
		item, ok := l.convertLayoutItem(r, NodeOverlay)
		if !ok {
			l.log.Info("dropping unparsable overlay item", "index", i)
			continue
		}
		doc.Overlays = append(doc.Overlays, item)
	}

	for i, r := range raw.Commands {
		cmd, ok := l.convertCommand(r)
		if !ok {
			l.log.Info("dropping unparsable command", "index", i)
			continue
		}
		doc.Commands = append(doc.Commands, cmd)
	}

	actions := make([]Action, 0, len(raw.Actions.Items))
	for i, r := range raw.Actions.Items {
		a, ok := l.convertAction(r)
		if !ok {
			l.log.Info("dropping unparsable action", "index", i)
			continue
		}
		actions = append(actions, a)
	}
	doc.Actions = watermarkActions(actions, now, fix)

	if len(raw.Defaults)+len(raw.Layouts)+len(raw.Overlays.Items)+len(raw.Commands)+len(raw.Actions.Items) == 0 {
		return SplashDocument()
	}

	return doc
}

// SplashDocument is the fallback document installed when the schedule file
// is missing, empty, or fails to parse: a single splash item stands in for
// the whole layout schedule.
func SplashDocument() *Document {
	return &Document{
		Layouts: []ScheduleItem{
			{
				LayoutID: 0,
				NodeKind: NodeSplash,
				FromDT:   farPast,
				ToDT:     farFuture,
				Priority: 0,
			},
		},
	}
}

func (l *Loader) convertLayoutItem(r rawLayoutItem, kind NodeKind) (ScheduleItem, bool) {
	file := strings.TrimSuffix(r.File, ".xml")
	layoutID, err := strconv.Atoi(strings.TrimSpace(file))
	if err != nil {
		return ScheduleItem{}, false
	}

	fromDT, ok := util.ParseScheduleTime(r.FromDT)
	if !ok {
		fromDT = farPast
	}
	toDT, ok := util.ParseScheduleTime(r.ToDT)
	if !ok {
		toDT = farFuture
	}
	if fromDT.After(toDT) {
		fromDT, toDT = farPast, farFuture
	}

	shareOfVoice := util.ParseIntDefault(r.ShareOfVoice, 0)

	fence, ferr := geo.ParseFence(r.GeoLocation)
	isGeoAware := util.ParseBoolFlag(r.IsGeoAware, false)
	if ferr != nil {
		l.log.Error(ferr, "invalid geofence on layout item, treating as not geo-aware", "layoutID", layoutID)
		isGeoAware = false
	}

	dependents := util.SplitNonEmpty(r.Dependents)
	dependents = append(dependents, r.DependentFiles...)

	item := ScheduleItem{
		LayoutID:        layoutID,
		ScheduleID:      util.ParseIntDefault(r.ScheduleID, 0),
		NodeKind:        kind,
		FromDT:          fromDT,
		ToDT:            toDT,
		Priority:        util.ParseIntDefault(r.Priority, 0),
		IsInterrupt:     shareOfVoice > 0,
		ShareOfVoice:    shareOfVoice,
		DurationHint:    util.ParseIntDefault(r.Duration, 0),
		IsGeoAware:      isGeoAware,
		GeoFence:        fence,
		IsCyclePlayback: util.ParseBoolFlag(r.CyclePlayback, false),
		CycleGroupKey:   strings.TrimSpace(r.GroupKey),
		CyclePlayCount:  util.ParseIntDefault(r.PlayCount, 0),
		Dependents:      dependents,
	}
	if item.CycleGroupKey == "" {
		item.IsCyclePlayback = false
	}
	return item, true
}

func (l *Loader) convertCommand(r rawCommand) (ScheduleCommand, bool) {
	dueAt, ok := util.ParseScheduleTime(r.Date)
	if !ok {
		return ScheduleCommand{}, false
	}
	if strings.TrimSpace(r.Code) == "" {
		return ScheduleCommand{}, false
	}
	return ScheduleCommand{
		DueAt:      dueAt,
		Code:       r.Code,
		ScheduleID: util.ParseIntDefault(r.ScheduleID, 0),
		CronExpr:   strings.TrimSpace(r.CronExpr),
		SkipIf:     strings.TrimSpace(r.SkipIf),
	}, true
}

func (l *Loader) convertAction(r rawAction) (Action, bool) {
	fromDT, ok := util.ParseScheduleTime(r.FromDT)
	if !ok {
		fromDT = farPast
	}
	toDT, ok := util.ParseScheduleTime(r.ToDT)
	if !ok {
		toDT = farFuture
	}

	fence, ferr := geo.ParseFence(r.GeoLocation)
	isGeoAware := util.ParseBoolFlag(r.IsGeoAware, false)
	if ferr != nil {
		l.log.Error(ferr, "invalid geofence on action, treating as not geo-aware")
		isGeoAware = false
	}

	return Action{
		Priority:   util.ParseIntDefault(r.Priority, 0),
		FromDT:     fromDT,
		ToDT:       toDT,
		IsGeoAware: isGeoAware,
		GeoFence:   fence,
		Payload:    strings.TrimSpace(r.Payload),
	}, true
}

// watermarkActions keeps only the highest-priority band among actions that
// are currently time-and-geo valid; ties accumulate, lower priorities are
// discarded.
func watermarkActions(actions []Action, now time.Time, fix geo.Fix) []Action {
	best := -1
	for _, a := range actions {
		if !a.IsTimeValid(now) {
			continue
		}
		if a.IsGeoAware && !a.GeoFence.Contains(fix) {
			continue
		}
		if a.Priority > best {
			best = a.Priority
		}
	}
	if best < 0 {
		return nil
	}
	var out []Action
	for _, a := range actions {
		if !a.IsTimeValid(now) {
			continue
		}
		if a.IsGeoAware && !a.GeoFence.Contains(fix) {
			continue
		}
		if a.Priority == best {
			out = append(out, a)
		}
	}
	return out
}
