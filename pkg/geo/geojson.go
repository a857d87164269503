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
	"encoding/json"
	"fmt"
)

// geojsonGeometry mirrors the subset of GeoJSON geometry we accept:
// Polygon coordinates are [ring][point][lon,lat].
type geojsonGeometry struct {
	Type        string           `json:"type"`
	Coordinates [][][]float64    `json:"coordinates"`
	Geometry    *geojsonGeometry `json:"geometry,omitempty"` // present on a Feature
}

// ParseFence decodes a GeoJSON "Polygon" geometry, or a "Feature" wrapping
// one, from raw. An empty raw string yields an empty Fence (contains
// everything), matching "no geofence configured" rather than an error.
func ParseFence(raw string) (Fence, error) {
	if raw == "" {
		return Fence{empty: true}, nil
	}

	var g geojsonGeometry
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return Fence{}, fmt.Errorf("geo: invalid geojson: %w", err)
	}

	geomType := g.Type
	coords := g.Coordinates
	if g.Geometry != nil {
		geomType = g.Geometry.Type
		coords = g.Geometry.Coordinates
	}

	if geomType != "Polygon" {
		return Fence{}, fmt.Errorf("geo: unsupported geometry type %q, want Polygon", geomType)
	}
	if len(coords) == 0 {
		return Fence{}, fmt.Errorf("geo: polygon has no rings")
	}

	rings := make([]ring, 0, len(coords))
	for _, r := range coords {
		points := make(ring, 0, len(r))
		for _, p := range r {
			if len(p) < 2 {
				return Fence{}, fmt.Errorf("geo: polygon point has fewer than 2 coordinates")
			}
			// GeoJSON order is [lon, lat]; a third (altitude) element, if
			// present, is ignored.
			points = append(points, [2]float64{p[0], p[1]})
		}
		rings = append(rings, points)
	}
	return Fence{rings: rings}, nil
}
