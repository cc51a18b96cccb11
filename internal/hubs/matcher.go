package hubs

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/geo"
)

// Matcher finds the single nearest hub that alone can supply every line of a
// multi-item request. Splitting one order across hubs is out of scope; when
// no single hub qualifies the caller falls back to per-line availability.
type Matcher struct {
	Repo Repo
	Log  *zap.Logger
}

type RequestLine struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type MatchLine struct {
	ProductName string
	Quantity    int
	Item        InventoryItem
}

type Match struct {
	Hub        Hub
	DistanceKm float64
	Lines      []MatchLine
}

// FindNearestFullMatch returns (nil, nil) when no single hub can cover the
// whole request. Ties on distance are broken by load ratio, then hub id.
func (m *Matcher) FindNearestFullMatch(ctx context.Context, loc geo.Coordinate, lines []RequestLine) (*Match, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no items requested", ErrValidation)
	}
	for _, l := range lines {
		if l.ProductName == "" || l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: each line needs a product name and a positive quantity", ErrValidation)
		}
	}

	hubList, err := m.Repo.ListHubs(ctx)
	if err != nil {
		return nil, err
	}

	var found *Match
	for _, hub := range hubList {
		if hub.Status != HubActive {
			continue
		}
		stock, err := m.Repo.ListByHub(ctx, hub.ID)
		if err != nil {
			return nil, err
		}

		matched := make([]MatchLine, 0, len(lines))
		for _, l := range lines {
			it := pickBatch(stock, l.ProductName, l.Quantity)
			if it == nil {
				matched = nil
				break
			}
			matched = append(matched, MatchLine{ProductName: l.ProductName, Quantity: l.Quantity, Item: *it})
		}
		if matched == nil {
			continue
		}

		d, err := geo.DistanceKm(loc, geo.Coordinate{Lat: hub.Lat, Lng: hub.Lng})
		if err != nil {
			m.Log.Warn("skipping hub with bad coordinates",
				zap.String("hub_id", hub.ID.String()), zap.Error(err))
			continue
		}

		cand := &Match{Hub: hub, DistanceKm: d, Lines: matched}
		if found == nil || closer(cand, found) {
			found = cand
		}
	}
	return found, nil
}

func closer(a, b *Match) bool {
	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm < b.DistanceKm
	}
	ra, rb := a.Hub.LoadRatio(), b.Hub.LoadRatio()
	if ra != rb {
		return ra < rb
	}
	return a.Hub.ID.String() < b.Hub.ID.String()
}

// pickBatch selects the available batch with the greatest quantity that can
// cover the requested amount, or nil when the hub cannot supply the line.
func pickBatch(stock []InventoryItem, productName string, qty int) *InventoryItem {
	var best *InventoryItem
	for i := range stock {
		it := &stock[i]
		if it.Status != ItemAvailable || it.Quantity < qty {
			continue
		}
		if !strings.EqualFold(it.ProductName, productName) {
			continue
		}
		if best == nil || it.Quantity > best.Quantity {
			best = it
		}
	}
	return best
}
