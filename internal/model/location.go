package model

import "fmt"

// Coordinates is a WGS84 position, longitude first.
type Coordinates struct {
	Lon float64
	Lat float64
}

func (c Coordinates) String() string { return fmt.Sprintf("%g,%g", c.Lon, c.Lat) }

// Location points at a row/column of the travel matrices, at a geographic
// position, or both. HasIndex marks an index supplied by the caller; a
// location built from coordinates only receives its index when it is
// registered with a problem.
type Location struct {
	Index    int
	HasIndex bool
	Coords   *Coordinates
}

// AtIndex is a location known only by its matrix index.
func AtIndex(i int) Location { return Location{Index: i, HasIndex: true} }

// AtCoords is a location known only by its coordinates.
func AtCoords(lon, lat float64) Location {
	return Location{Coords: &Coordinates{Lon: lon, Lat: lat}}
}

// At carries both a matrix index and coordinates.
func At(i int, lon, lat float64) Location {
	return Location{Index: i, HasIndex: true, Coords: &Coordinates{Lon: lon, Lat: lat}}
}

func (l Location) HasCoordinates() bool { return l.Coords != nil }

// Valid reports whether the location carries at least an index or coordinates.
func (l Location) Valid() bool { return l.HasIndex || l.Coords != nil }

func (l Location) String() string {
	switch {
	case l.HasIndex && l.Coords != nil:
		return fmt.Sprintf("#%d(%s)", l.Index, l.Coords)
	case l.Coords != nil:
		return l.Coords.String()
	}
	return fmt.Sprintf("#%d", l.Index)
}
