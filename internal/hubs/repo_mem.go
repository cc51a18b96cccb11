package hubs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepo is an in-process Repo used by tests and local development. It
// honors the same optimistic-concurrency contract as the Postgres
// implementation: CompareAndSwapQuantity bumps version and only lands when
// the caller's expected version is current.
type MemRepo struct {
	mu        sync.Mutex
	hubs      map[uuid.UUID]Hub
	items     map[uuid.UUID]InventoryItem
	movements []StockMovement
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		hubs:  make(map[uuid.UUID]Hub),
		items: make(map[uuid.UUID]InventoryItem),
	}
}

func (r *MemRepo) CreateHub(_ context.Context, h *Hub) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	r.hubs[h.ID] = *h
	return nil
}

func (r *MemRepo) GetHub(_ context.Context, id uuid.UUID) (*Hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (r *MemRepo) ListHubs(_ context.Context) ([]Hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Hub, 0, len(r.hubs))
	for _, h := range r.hubs {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemRepo) UpdateHub(_ context.Context, h *Hub) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hubs[h.ID]; !ok {
		return fmt.Errorf("%w: hub %s", ErrNotFound, h.ID)
	}
	h.UpdatedAt = time.Now().UTC()
	r.hubs[h.ID] = *h
	return nil
}

func (r *MemRepo) CreateItem(_ context.Context, it *InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	r.items[it.ID] = *it
	return nil
}

func (r *MemRepo) GetItem(_ context.Context, id uuid.UUID) (*InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (r *MemRepo) ListByHub(_ context.Context, hubID uuid.UUID) ([]InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InventoryItem
	for _, it := range r.items {
		if it.HubID == hubID {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out, nil
}

func (r *MemRepo) ListByProduct(_ context.Context, productName string) ([]InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InventoryItem
	for _, it := range r.items {
		if strings.EqualFold(it.ProductName, productName) {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out, nil
}

func sortItems(items []InventoryItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}

func (r *MemRepo) UpdateItemFields(_ context.Context, id uuid.UUID, fields map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return false, nil
	}
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: empty patch", ErrValidation)
	}
	for col, v := range fields {
		if !patchableItemCols[col] {
			return false, fmt.Errorf("%w: field %q is not patchable", ErrValidation, col)
		}
		ok := true
		switch col {
		case "product_name":
			it.ProductName, ok = v.(string)
		case "category":
			it.Category, ok = v.(string)
		case "unit":
			it.Unit, ok = v.(string)
		case "price_paise":
			it.PricePaise, ok = v.(int64)
		case "farmer_name":
			it.FarmerName, ok = v.(string)
		case "harvest_date":
			it.HarvestDate, ok = v.(time.Time)
		case "expiry_date":
			it.ExpiryDate, ok = v.(time.Time)
		case "quality":
			it.Quality, ok = v.(string)
		case "status":
			it.Status, ok = toItemStatus(v)
		}
		if !ok {
			return false, fmt.Errorf("%w: field %q has wrong type %T", ErrValidation, col, v)
		}
	}
	it.UpdatedAt = time.Now().UTC()
	r.items[id] = it
	return true, nil
}

func toItemStatus(v any) (ItemStatus, bool) {
	switch s := v.(type) {
	case ItemStatus:
		return s, true
	case string:
		return ItemStatus(s), true
	}
	return "", false
}

func (r *MemRepo) CompareAndSwapQuantity(_ context.Context, id uuid.UUID, expectedVersion int64, newQty int, newStatus ItemStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Version != expectedVersion {
		return false, nil
	}
	it.Quantity = newQty
	it.Status = newStatus
	it.Version++
	it.UpdatedAt = time.Now().UTC()
	r.items[id] = it
	return true, nil
}

func (r *MemRepo) DeleteItem(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

func (r *MemRepo) AppendMovement(_ context.Context, m *StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *MemRepo) ListMovements(_ context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockMovement
	for _, m := range r.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}
