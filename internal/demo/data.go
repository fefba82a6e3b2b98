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
package demo

import (
	"math"
	"strings"

	"github.com/tombee/toolhost/internal/wrappers"
)

var addresses = []wrappers.Address{
	{PostalCode: "01310100", Street: "Avenida Paulista", Complement: "de 612 a 1510 - lado par", Neighborhood: "Bela Vista", City: "São Paulo", State: "SP"},
	{PostalCode: "01311000", Street: "Avenida Paulista", Complement: "de 1512 a 2132 - lado par", Neighborhood: "Bela Vista", City: "São Paulo", State: "SP"},
	{PostalCode: "20040002", Street: "Rua da Assembleia", Neighborhood: "Centro", City: "Rio de Janeiro", State: "RJ"},
	{PostalCode: "30130010", Street: "Avenida Afonso Pena", Neighborhood: "Centro", City: "Belo Horizonte", State: "MG"},
	{PostalCode: "70040010", Street: "Esplanada dos Ministérios", Neighborhood: "Zona Cívico-Administrativa", City: "Brasília", State: "DF"},
}

var places = []wrappers.Place{
	{Name: "MASP", Address: "Av. Paulista, 1578", Lat: -23.5614, Lng: -46.6559, Rating: 4.7, Types: []string{"museum"}},
	{Name: "Drogasil Paulista", Address: "Av. Paulista, 1000", Lat: -23.5646, Lng: -46.6527, Rating: 4.2, Types: []string{"pharmacy"}},
	{Name: "Parque Trianon", Address: "R. Peixoto Gomide, 949", Lat: -23.5629, Lng: -46.6572, Rating: 4.6, Types: []string{"park"}},
	{Name: "Confeitaria Colombo", Address: "R. Gonçalves Dias, 32", Lat: -22.9055, Lng: -43.1779, Rating: 4.6, Types: []string{"cafe"}},
}

func findByPostalCode(code string) (wrappers.Address, bool) {
	for _, a := range addresses {
		if a.PostalCode == code {
			return a, true
		}
	}
	return wrappers.Address{}, false
}

func searchAddresses(state, city, street string) []wrappers.Address {
	out := []wrappers.Address{}
	for _, a := range addresses {
		if strings.EqualFold(a.State, state) &&
			strings.EqualFold(a.City, city) &&
			strings.Contains(strings.ToLower(a.Street), strings.ToLower(street)) {
			out = append(out, a)
		}
	}
	return out
}

// landmarks maps a lowercase keyword to the location it geocodes to.
var landmarks = []struct {
	keyword string
	loc     wrappers.Location
}{
	{"paulista", wrappers.Location{Lat: -23.5614, Lng: -46.6559, FormattedAddress: "Av. Paulista, São Paulo - SP"}},
	{"assembleia", wrappers.Location{Lat: -22.9050, Lng: -43.1762, FormattedAddress: "R. da Assembleia, Rio de Janeiro - RJ"}},
	{"afonso pena", wrappers.Location{Lat: -19.9245, Lng: -43.9352, FormattedAddress: "Av. Afonso Pena, Belo Horizonte - MG"}},
	{"esplanada", wrappers.Location{Lat: -15.7990, Lng: -47.8642, FormattedAddress: "Esplanada dos Ministérios, Brasília - DF"}},
}

func geocode(query string) (wrappers.Location, bool) {
	q := strings.ToLower(query)
	for _, l := range landmarks {
		if strings.Contains(q, l.keyword) {
			return l.loc, true
		}
	}
	return wrappers.Location{}, false
}

func nearby(lat, lng float64, radius int, kind string) []wrappers.Place {
	out := []wrappers.Place{}
	for _, p := range places {
		if distanceMeters(lat, lng, p.Lat, p.Lng) > float64(radius) {
			continue
		}
		if kind != "" && !containsFold(p.Types, kind) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// distanceMeters is the haversine distance between two points.
func distanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
