package domain

import (
	"strings"
	"time"
)

// DefaultPickupPoints is the catalog a fresh deployment starts with.
func DefaultPickupPoints(now time.Time) []PickupPoint {
	names := []string{"Apowa", "Kwesimintsim", "Apolo", "Fijai"}
	out := make([]PickupPoint, len(names))
	for i, n := range names {
		out[i] = PickupPoint{ID: Slug(n), Name: n, Active: true, CreatedAt: now, UpdatedAt: now}
	}
	return out
}

// DefaultDestinations carries the flat fares in cedis.
func DefaultDestinations(now time.Time) []Destination {
	fares := []struct {
		name  string
		cedis int64
	}{
		{"Madina/Adenta", 30},
		{"Accra", 40},
		{"Tema", 50},
		{"Kasoa", 70},
		{"Cape Coast", 80},
		{"Takoradi", 60},
	}
	out := make([]Destination, len(fares))
	for i, f := range fares {
		out[i] = Destination{ID: Slug(f.name), Name: f.name, Active: true, Price: GHS(f.cedis), CreatedAt: now, UpdatedAt: now}
	}
	return out
}

// Slug derives a catalog id from a display name: "Cape Coast" -> "cape-coast".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
