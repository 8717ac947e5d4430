// Package geocode resolves postal addresses to coordinates.
//
// NominatimClient talks to an OpenStreetMap Nominatim instance under its
// usage policy (one request per second, identifying User-Agent). Service
// fans a list of addresses out through core.Run so one bad address never
// costs the rest of the batch.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const defaultCountry = "France"

var (
	// ErrNotFound is returned when the geocoder has no match for a query.
	ErrNotFound = errors.New("geocode: no match")
	// ErrRateLimited is returned when the upstream answered 429.
	ErrRateLimited = errors.New("geocode: rate limited")
	// ErrEmptyQuery is returned for blank queries and addresses without a commune.
	ErrEmptyQuery = errors.New("geocode: empty query")
)

// Address is one row of the input dataset.
type Address struct {
	Name        string  `json:"name,omitempty"`
	Commune     string  `json:"commune"`
	Departement string  `json:"departement,omitempty"`
	Country     string  `json:"country,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}

// Query builds the free-form search string "<commune>,<departement>,<country>".
// Country defaults to France; an empty departement is skipped.
func (a Address) Query() string {
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = defaultCountry
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Commune, a.Departement, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ",")
}

// Validate reports whether the address can be looked up.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Commune) == "" {
		return fmt.Errorf("%w: address %q has no commune", ErrEmptyQuery, a.Name)
	}
	return nil
}

// Location is a resolved coordinate.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Geocoder resolves a free-form query to a Location.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Location, error)
}

// GeocoderFunc adapts a function to Geocoder.
type GeocoderFunc func(ctx context.Context, query string) (Location, error)

func (f GeocoderFunc) Geocode(ctx context.Context, query string) (Location, error) {
	return f(ctx, query)
}

// normalizeQuery is the cache key form of a query.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
