package geo

import (
	"errors"
	"math"
	"testing"
)

func TestDistanceKm_SymmetricAndZero(t *testing.T) {
	delhi := Coordinate{Lat: 28.6139, Lng: 77.2090}
	mumbai := Coordinate{Lat: 19.0760, Lng: 72.8777}

	d1, err := DistanceKm(delhi, mumbai)
	if err != nil {
		t.Fatalf("DistanceKm: %v", err)
	}
	d2, err := DistanceKm(mumbai, delhi)
	if err != nil {
		t.Fatalf("DistanceKm reversed: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("not symmetric: %v vs %v", d1, d2)
	}
	// Delhi-Mumbai is roughly 1150 km as the crow flies.
	if d1 < 1100 || d1 > 1200 {
		t.Fatalf("implausible distance: %v", d1)
	}

	z, err := DistanceKm(delhi, delhi)
	if err != nil {
		t.Fatalf("DistanceKm same point: %v", err)
	}
	if z != 0 {
		t.Fatalf("want 0 for identical points, got %v", z)
	}
}

func TestDistanceKm_InvalidCoordinates(t *testing.T) {
	ok := Coordinate{Lat: 12.97, Lng: 77.59}
	bad := []Coordinate{
		{Lat: 91, Lng: 0},
		{Lat: -91, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: 0, Lng: -181},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
	}
	for _, b := range bad {
		if _, err := DistanceKm(ok, b); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("coordinate %+v: want ErrInvalidCoordinate, got %v", b, err)
		}
		if _, err := DistanceKm(b, ok); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("coordinate %+v first arg: want ErrInvalidCoordinate, got %v", b, err)
		}
	}
}
