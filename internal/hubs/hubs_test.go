package hubs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/hubs"
)

// failingLedgerRepo refuses movement writes for one item, simulating a
// storage fault between the quantity write and the ledger write.
type failingLedgerRepo struct {
	*hubs.MemRepo
	failFor uuid.UUID
}

func (r *failingLedgerRepo) AppendMovement(ctx context.Context, m *hubs.StockMovement) error {
	if m.ItemID == r.failFor {
		return errors.New("ledger write refused")
	}
	return r.MemRepo.AppendMovement(ctx, m)
}

func newHub(t *testing.T, repo *hubs.MemRepo, name string, lat, lng float64) *hubs.Hub {
	t.Helper()
	h := &hubs.Hub{
		Name:       name,
		Lat:        lat,
		Lng:        lng,
		CapacityKg: 1000,
		Status:     hubs.HubActive,
	}
	if err := repo.CreateHub(context.Background(), h); err != nil {
		t.Fatalf("create hub: %v", err)
	}
	return h
}

func newItem(t *testing.T, repo *hubs.MemRepo, hubID uuid.UUID, product string, qty int, pricePaise int64) *hubs.InventoryItem {
	t.Helper()
	it := &hubs.InventoryItem{
		HubID:       hubID,
		ProductName: product,
		Quantity:    qty,
		Unit:        "kg",
		PricePaise:  pricePaise,
		FarmerID:    "farmer-1",
		FarmerName:  "Ravi",
		BatchID:     "BAT-" + uuid.NewString()[:8],
		Status:      hubs.ItemAvailable,
	}
	if err := repo.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

func newStore(repo *hubs.MemRepo) *hubs.Store {
	return &hubs.Store{Repo: repo, Attempts: 3, Backoff: time.Millisecond, Log: zap.NewNop()}
}

func newCoordinator(repo *hubs.MemRepo) *hubs.Coordinator {
	return &hubs.Coordinator{Repo: repo, Attempts: 3, Backoff: time.Millisecond, Log: zap.NewNop()}
}
