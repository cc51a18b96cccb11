package hubs

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/geo"
)

// Resolver answers "which hubs could supply this one product line". Results
// are advisory: stock may move between this read and a reservation attempt,
// and the reservation path re-checks authoritatively.
type Resolver struct {
	Repo Repo
	Log  *zap.Logger
}

type Option struct {
	Hub          Hub
	InventoryID  uuid.UUID
	AvailableQty int
	PricePaise   int64
	Unit         string
	DistanceKm   *float64
}

// CheckAvailability returns one Option per active hub holding an available
// batch of productName with at least requestedQty units. Sorted by distance
// when a customer location is given, by unit price otherwise. An empty slice
// means "no options", not an error.
func (r *Resolver) CheckAvailability(ctx context.Context, productName string, requestedQty int, loc *geo.Coordinate) ([]Option, error) {
	if productName == "" {
		return nil, fmt.Errorf("%w: product name required", ErrValidation)
	}
	if requestedQty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return nil, err
		}
	}

	hubList, err := r.Repo.ListHubs(ctx)
	if err != nil {
		return nil, err
	}
	active := make(map[uuid.UUID]Hub, len(hubList))
	for _, h := range hubList {
		if h.Status == HubActive {
			active[h.ID] = h
		}
	}

	items, err := r.Repo.ListByProduct(ctx, productName)
	if err != nil {
		return nil, err
	}

	// One entry per hub; when a hub has several qualifying batches keep the
	// one with the greatest quantity.
	best := make(map[uuid.UUID]InventoryItem)
	for _, it := range items {
		if it.Status != ItemAvailable || it.Quantity < requestedQty {
			continue
		}
		if _, ok := active[it.HubID]; !ok {
			continue
		}
		if cur, ok := best[it.HubID]; !ok || it.Quantity > cur.Quantity {
			best[it.HubID] = it
		}
	}

	out := make([]Option, 0, len(best))
	for hubID, it := range best {
		hub := active[hubID]
		opt := Option{
			Hub:          hub,
			InventoryID:  it.ID,
			AvailableQty: it.Quantity,
			PricePaise:   it.PricePaise,
			Unit:         it.Unit,
		}
		if loc != nil {
			d, err := geo.DistanceKm(*loc, geo.Coordinate{Lat: hub.Lat, Lng: hub.Lng})
			if err != nil {
				r.Log.Warn("skipping hub with bad coordinates",
					zap.String("hub_id", hub.ID.String()), zap.Error(err))
				continue
			}
			opt.DistanceKm = &d
		}
		out = append(out, opt)
	}

	sort.Slice(out, func(i, j int) bool {
		if loc != nil {
			if *out[i].DistanceKm != *out[j].DistanceKm {
				return *out[i].DistanceKm < *out[j].DistanceKm
			}
		} else if out[i].PricePaise != out[j].PricePaise {
			return out[i].PricePaise < out[j].PricePaise
		}
		return out[i].Hub.ID.String() < out[j].Hub.ID.String()
	})
	return out, nil
}
