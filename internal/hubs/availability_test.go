package hubs_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/geo"
	"github.com/greenmandi/hubstock/internal/hubs"
)

func TestCheckAvailability_FiltersByQuantity(t *testing.T) {
	repo := hubs.NewMemRepo()
	h1 := newHub(t, repo, "Yeshwanthpur", 13.02, 77.55)
	h2 := newHub(t, repo, "Whitefield", 12.97, 77.75)
	newItem(t, repo, h1.ID, "Tomatoes", 5, 8000)  // Rs 80
	newItem(t, repo, h2.ID, "Tomatoes", 10, 7500) // Rs 75

	r := &hubs.Resolver{Repo: repo, Log: zap.NewNop()}
	opts, err := r.CheckAvailability(context.Background(), "Tomatoes", 8, nil)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(opts) != 1 {
		t.Fatalf("want 1 option, got %d", len(opts))
	}
	if opts[0].Hub.ID != h2.ID || opts[0].AvailableQty != 10 || opts[0].PricePaise != 7500 {
		t.Fatalf("unexpected option: %+v", opts[0])
	}
}

func TestCheckAvailability_SortsByPriceWithoutLocation(t *testing.T) {
	repo := hubs.NewMemRepo()
	h1 := newHub(t, repo, "A", 13.02, 77.55)
	h2 := newHub(t, repo, "B", 12.97, 77.75)
	newItem(t, repo, h1.ID, "Onions", 20, 3000)
	newItem(t, repo, h2.ID, "Onions", 20, 2500)

	r := &hubs.Resolver{Repo: repo, Log: zap.NewNop()}
	opts, err := r.CheckAvailability(context.Background(), "onions", 5, nil) // case-insensitive
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("want 2 options, got %d", len(opts))
	}
	if opts[0].Hub.ID != h2.ID {
		t.Fatalf("cheapest hub should sort first, got %+v", opts[0])
	}
}

func TestCheckAvailability_SortsByDistanceWithLocation(t *testing.T) {
	repo := hubs.NewMemRepo()
	near := newHub(t, repo, "Near", 12.98, 77.60)
	far := newHub(t, repo, "Far", 13.20, 77.80)
	newItem(t, repo, far.ID, "Spinach", 50, 1000) // cheaper but farther
	newItem(t, repo, near.ID, "Spinach", 50, 2000)

	loc := &geo.Coordinate{Lat: 12.9716, Lng: 77.5946}
	r := &hubs.Resolver{Repo: repo, Log: zap.NewNop()}
	opts, err := r.CheckAvailability(context.Background(), "Spinach", 10, loc)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("want 2 options, got %d", len(opts))
	}
	if opts[0].Hub.ID != near.ID {
		t.Fatalf("nearest hub should sort first, got %s", opts[0].Hub.Name)
	}
	if opts[0].DistanceKm == nil || opts[1].DistanceKm == nil {
		t.Fatal("distances should be populated when a location is given")
	}
	if *opts[0].DistanceKm > *opts[1].DistanceKm {
		t.Fatal("options not in ascending distance order")
	}
}

func TestCheckAvailability_SkipsInactiveAndNonAvailable(t *testing.T) {
	repo := hubs.NewMemRepo()
	ctx := context.Background()

	inactive := newHub(t, repo, "Closed", 13.0, 77.6)
	inactive.Status = hubs.HubMaintenance
	if err := repo.UpdateHub(ctx, inactive); err != nil {
		t.Fatalf("update hub: %v", err)
	}
	newItem(t, repo, inactive.ID, "Carrots", 30, 4000)

	active := newHub(t, repo, "Open", 13.1, 77.7)
	expired := newItem(t, repo, active.ID, "Carrots", 30, 4000)
	if _, err := repo.UpdateItemFields(ctx, expired.ID, map[string]any{"status": hubs.ItemExpired}); err != nil {
		t.Fatalf("expire item: %v", err)
	}

	r := &hubs.Resolver{Repo: repo, Log: zap.NewNop()}
	opts, err := r.CheckAvailability(ctx, "Carrots", 5, nil)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(opts) != 0 {
		t.Fatalf("want no options, got %+v", opts)
	}
}

func TestCheckAvailability_PicksLargestBatchPerHub(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	newItem(t, repo, h.ID, "Mangoes", 6, 9000)
	big := newItem(t, repo, h.ID, "Mangoes", 15, 9500)

	r := &hubs.Resolver{Repo: repo, Log: zap.NewNop()}
	opts, err := r.CheckAvailability(context.Background(), "Mangoes", 5, nil)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(opts) != 1 {
		t.Fatalf("want one entry per hub, got %d", len(opts))
	}
	if opts[0].InventoryID != big.ID || opts[0].AvailableQty != 15 {
		t.Fatalf("should pick the largest batch: %+v", opts[0])
	}
}

func TestCheckAvailability_Validation(t *testing.T) {
	repo := hubs.NewMemRepo()
	r := &hubs.Resolver{Repo: repo, Log: zap.NewNop()}

	if _, err := r.CheckAvailability(context.Background(), "", 1, nil); !errors.Is(err, hubs.ErrValidation) {
		t.Fatalf("empty product: want ErrValidation, got %v", err)
	}
	if _, err := r.CheckAvailability(context.Background(), "Tomatoes", 0, nil); !errors.Is(err, hubs.ErrValidation) {
		t.Fatalf("zero qty: want ErrValidation, got %v", err)
	}
	bad := &geo.Coordinate{Lat: 120, Lng: 0}
	if _, err := r.CheckAvailability(context.Background(), "Tomatoes", 1, bad); !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("bad location: want ErrInvalidCoordinate, got %v", err)
	}
}
