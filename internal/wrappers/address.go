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
	"unicode"

	"github.com/tombee/toolhost/internal/mcp"
)

// AddressServer is the registry name of the address lookup server.
const AddressServer = "address"

const (
	toolLookupPostalCode = "lookup_postal_code"
	toolSearchAddress    = "search_address"

	// healthPostalCode is a code every address backend knows.
	healthPostalCode = "01310100"
)

// AddressRequest is one of ByPostalCode or ByStreet.
type AddressRequest interface {
	addressRequest()
}

// ByPostalCode looks up the address of a postal code. Separators are
// ignored; the code must have 8 digits.
type ByPostalCode struct {
	PostalCode string
}

// ByStreet searches addresses by state, city, and (partial) street name.
type ByStreet struct {
	State  string
	City   string
	Street string
}

func (ByPostalCode) addressRequest() {}
func (ByStreet) addressRequest()     {}

// Address is one postal address.
type Address struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// AddressWrapper adapts the address server.
type AddressWrapper struct {
	caller mcp.ToolCaller
}

// NewAddress creates an address wrapper over caller.
func NewAddress(caller mcp.ToolCaller) *AddressWrapper {
	return &AddressWrapper{caller: caller}
}

// ServerName implements mcp.Wrapper.
func (w *AddressWrapper) ServerName() string {
	return w.caller.ServerName()
}

// HealthCheck looks up a well-known postal code.
func (w *AddressWrapper) HealthCheck(ctx context.Context) bool {
	r := w.caller.CallTool(ctx, toolLookupPostalCode, map[string]any{"postal_code": healthPostalCode})
	return r.Success
}

// Lookup resolves req to one or more addresses.
func (w *AddressWrapper) Lookup(ctx context.Context, req AddressRequest) ([]Address, error) {
	switch req := req.(type) {
	case ByPostalCode:
		addr, err := w.ByPostalCode(ctx, req.PostalCode)
		if err != nil {
			return nil, err
		}
		return []Address{addr}, nil
	case ByStreet:
		return w.ByStreet(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unsupported address request %T", ErrInvalidInput, req)
	}
}

// ByPostalCode returns the address of a postal code.
func (w *AddressWrapper) ByPostalCode(ctx context.Context, code string) (Address, error) {
	normalized, err := NormalizePostalCode(code)
	if err != nil {
		return Address{}, err
	}

	r := w.caller.CallTool(ctx, toolLookupPostalCode, map[string]any{"postal_code": normalized})
	var addr Address
	if err := decodeResult(r, &addr); err != nil {
		return Address{}, err
	}
	if addr.PostalCode == "" && addr.Street == "" && addr.City == "" {
		return Address{}, ErrNotFound
	}
	return addr, nil
}

// ByStreet searches by street name.
func (w *AddressWrapper) ByStreet(ctx context.Context, req ByStreet) ([]Address, error) {
	state := strings.ToUpper(strings.TrimSpace(req.State))
	city := strings.TrimSpace(req.City)
	street := strings.TrimSpace(req.Street)

	if len(state) != 2 {
		return nil, invalidInput("state", "must be a two-letter code", "Use the abbreviation, for example SP")
	}
	if len([]rune(city)) < 3 {
		return nil, invalidInput("city", "must have at least 3 characters", "")
	}
	if len([]rune(street)) < 3 {
		return nil, invalidInput("street", "must have at least 3 characters", "")
	}

	r := w.caller.CallTool(ctx, toolSearchAddress, map[string]any{
		"state":  state,
		"city":   city,
		"street": street,
	})
	var addrs []Address
	if err := decodeResult(r, &addrs); err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNotFound
	}
	return addrs, nil
}

// NormalizePostalCode strips separators and checks for exactly 8 digits.
func NormalizePostalCode(code string) (string, error) {
	var b strings.Builder
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || unicode.IsSpace(r):
		default:
			return "", invalidInput("postal_code", fmt.Sprintf("unexpected character %q", r), "Use digits only, for example 01310-100")
		}
	}
	if b.Len() != 8 {
		return "", invalidInput("postal_code", "must have 8 digits", "Use digits only, for example 01310-100")
	}
	return b.String(), nil
}

var _ mcp.Wrapper = (*AddressWrapper)(nil)
