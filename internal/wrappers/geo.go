// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package wrappers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tombee/toolhost/internal/mcp"
)

// GeoServer is the registry name of the maps server.
const GeoServer = "maps"

const (
	toolGeocode      = "geocode"
	toolNearbyPlaces = "nearby_places"

	// DefaultRadius applies to NearbyPlaces without a radius, in meters.
	DefaultRadius = 1000
	// MaxRadius is the largest accepted search radius, in meters.
	MaxRadius = 50000
)

// GeoRequest is one of Geocode or NearbyPlaces.
type GeoRequest interface {
	geoRequest()
}

// Geocode resolves a free-form address to coordinates.
type Geocode struct {
	Address string
}

// NearbyPlaces lists places around a point.
type NearbyPlaces struct {
	Lat    float64
	Lng    float64
	Radius int
	// Type filters by place type, such as "pharmacy". Empty means any.
	Type string
}

func (Geocode) geoRequest()      {}
func (NearbyPlaces) geoRequest() {}

// Location is a geocoded point.
type Location struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formatted_address"`
}

// Place is a point of interest.
type Place struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Rating  float64  `json:"rating,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// GeoResult holds the outcome of a GeoRequest. Geocode sets Location;
// NearbyPlaces sets Places.
type GeoResult struct {
	Location *Location
	Places   []Place
}

// GeoWrapper adapts the maps server.
type GeoWrapper struct {
	caller mcp.ToolCaller
}

// NewGeo creates a maps wrapper over caller.
func NewGeo(caller mcp.ToolCaller) *GeoWrapper {
	return &GeoWrapper{caller: caller}
}

// ServerName implements mcp.Wrapper.
func (w *GeoWrapper) ServerName() string {
	return w.caller.ServerName()
}

// HealthCheck geocodes a fixed address.
func (w *GeoWrapper) HealthCheck(ctx context.Context) bool {
	r := w.caller.CallTool(ctx, toolGeocode, map[string]any{"address": "Avenida Paulista, 1000, São Paulo"})
	return r.Success
}

// Query runs any GeoRequest.
func (w *GeoWrapper) Query(ctx context.Context, req GeoRequest) (GeoResult, error) {
	switch req := req.(type) {
	case Geocode:
		loc, err := w.Geocode(ctx, req.Address)
		if err != nil {
			return GeoResult{}, err
		}
		return GeoResult{Location: &loc}, nil
	case NearbyPlaces:
		places, err := w.Nearby(ctx, req)
		if err != nil {
			return GeoResult{}, err
		}
		return GeoResult{Places: places}, nil
	default:
		return GeoResult{}, fmt.Errorf("%w: unsupported geo request %T", ErrInvalidInput, req)
	}
}

// Geocode resolves an address to a location.
func (w *GeoWrapper) Geocode(ctx context.Context, address string) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, invalidInput("address", "is required", "")
	}

	r := w.caller.CallTool(ctx, toolGeocode, map[string]any{"address": address})
	var loc Location
	if err := decodeResult(r, &loc); err != nil {
		return Location{}, err
	}
	if loc.Lat == 0 && loc.Lng == 0 {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

// Nearby lists places around a point.
func (w *GeoWrapper) Nearby(ctx context.Context, req NearbyPlaces) ([]Place, error) {
	if req.Lat < -90 || req.Lat > 90 {
		return nil, invalidInput("lat", "must be between -90 and 90", "")
	}
	if req.Lng < -180 || req.Lng > 180 {
		return nil, invalidInput("lng", "must be between -180 and 180", "")
	}
	radius := req.Radius
	if radius == 0 {
		radius = DefaultRadius
	}
	if radius < 0 || radius > MaxRadius {
		return nil, invalidInput("radius", fmt.Sprintf("must be between 1 and %d meters", MaxRadius), "")
	}

	args := map[string]any{
		"lat":    req.Lat,
		"lng":    req.Lng,
		"radius": radius,
	}
	if req.Type != "" {
		args["type"] = req.Type
	}

	r := w.caller.CallTool(ctx, toolNearbyPlaces, args)
	var places []Place
	if err := decodeResult(r, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}
	return places, nil
}

var _ mcp.Wrapper = (*GeoWrapper)(nil)
