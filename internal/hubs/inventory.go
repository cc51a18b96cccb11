package hubs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/geo"
)

// Store owns inventory rows and the movement ledger. UpdateQuantity is the
// single audited path through which quantity changes; metadata edits go
// through UpdateItem and cannot touch quantity.
type Store struct {
	Repo     Repo
	Attempts int
	Backoff  time.Duration
	Log      *zap.Logger
}

type ItemInput struct {
	HubID       uuid.UUID
	ProductName string
	Category    string
	Quantity    int
	Unit        string
	PricePaise  int64
	FarmerID    string
	FarmerName  string
	HarvestDate time.Time
	ExpiryDate  time.Time
	Quality     string
}

// ItemPatch carries whitelisted metadata updates. Quantity is structurally
// absent; the repo layer additionally rejects it by column name.
type ItemPatch struct {
	ProductName *string
	Category    *string
	Unit        *string
	PricePaise  *int64
	FarmerName  *string
	HarvestDate *time.Time
	ExpiryDate  *time.Time
	Quality     *string
	Status      *ItemStatus
}

func (s *Store) AddItem(ctx context.Context, in ItemInput, actorID string) (*InventoryItem, error) {
	switch {
	case in.HubID == uuid.Nil:
		return nil, fmt.Errorf("%w: hub id required", ErrValidation)
	case strings.TrimSpace(in.ProductName) == "":
		return nil, fmt.Errorf("%w: product name required", ErrValidation)
	case in.Quantity < 0:
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	case in.PricePaise < 0:
		return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}

	hub, err := s.authorizedHub(ctx, in.HubID, actorID)
	if err != nil {
		return nil, err
	}

	it := &InventoryItem{
		ID:          uuid.New(),
		HubID:       hub.ID,
		ProductName: strings.TrimSpace(in.ProductName),
		Category:    in.Category,
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		PricePaise:  in.PricePaise,
		FarmerID:    in.FarmerID,
		FarmerName:  in.FarmerName,
		HarvestDate: in.HarvestDate,
		ExpiryDate:  in.ExpiryDate,
		Quality:     in.Quality,
		BatchID:     newBatchID(),
		Status:      ItemAvailable,
	}
	if it.Quantity == 0 {
		it.Status = ItemReservedOut
	}
	if err := s.Repo.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	if it.Quantity > 0 {
		if err := s.Repo.AppendMovement(ctx, &StockMovement{
			ItemID:  it.ID,
			Delta:   it.Quantity,
			Reason:  ReasonInitialStock,
			ActorID: actorID,
		}); err != nil {
			return nil, err
		}
	}
	s.Log.Info("inventory batch added",
		zap.String("item_id", it.ID.String()),
		zap.String("hub_id", hub.ID.String()),
		zap.String("batch_id", it.BatchID),
		zap.Int("quantity", it.Quantity))
	return it, nil
}

func newBatchID() string {
	return "BAT-" + strings.ToUpper(uuid.NewString()[:8])
}

// UpdateQuantity sets an item's quantity to newQty and records the delta in
// the ledger. Used for manual stock adjustments and cancellation restocks.
func (s *Store) UpdateQuantity(ctx context.Context, itemID uuid.UUID, newQty int, reason, actorID string) (*InventoryItem, error) {
	if newQty < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason required for quantity change", ErrValidation)
	}

	attempts := s.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	for attempt := 0; attempt < attempts; attempt++ {
		it, err := s.Repo.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, fmt.Errorf("%w: inventory item %s", ErrNotFound, itemID)
		}
		if _, err := s.authorizedHub(ctx, it.HubID, actorID); err != nil {
			return nil, err
		}

		newStatus := it.Status
		switch {
		case newQty == 0 && it.Status == ItemAvailable:
			newStatus = ItemReservedOut
		case newQty > 0 && it.Status == ItemReservedOut:
			newStatus = ItemAvailable
		}
		ok, err := s.Repo.CompareAndSwapQuantity(ctx, itemID, it.Version, newQty, newStatus)
		if err != nil {
			return nil, err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		if err := s.Repo.AppendMovement(ctx, &StockMovement{
			ItemID:  itemID,
			Delta:   newQty - it.Quantity,
			Reason:  reason,
			ActorID: actorID,
		}); err != nil {
			revertUnrecorded(ctx, s.Repo, itemID, newQty-it.Quantity, s.Log)
			return nil, err
		}
		updated := *it
		updated.Quantity = newQty
		updated.Status = newStatus
		updated.Version = it.Version + 1
		return &updated, nil
	}
	return nil, fmt.Errorf("%w: item %s", ErrReservationConflict, itemID)
}

// Restock adds qty back to an item through the audited path, tagging the
// movement with the order it compensates. Used by cancellation workflows; no
// manager check since the system, not a hub actor, initiates it.
func (s *Store) Restock(ctx context.Context, itemID uuid.UUID, qty int, reason, actorID string, orderID *uuid.UUID) (*InventoryItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: restock quantity must be > 0", ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason required for quantity change", ErrValidation)
	}

	attempts := s.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	for attempt := 0; attempt < attempts; attempt++ {
		it, err := s.Repo.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, fmt.Errorf("%w: inventory item %s", ErrNotFound, itemID)
		}

		newQty := it.Quantity + qty
		newStatus := it.Status
		if newStatus == ItemReservedOut {
			newStatus = ItemAvailable
		}
		ok, err := s.Repo.CompareAndSwapQuantity(ctx, itemID, it.Version, newQty, newStatus)
		if err != nil {
			return nil, err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		if err := s.Repo.AppendMovement(ctx, &StockMovement{
			ItemID:  itemID,
			Delta:   qty,
			Reason:  reason,
			ActorID: actorID,
			OrderID: orderID,
		}); err != nil {
			revertUnrecorded(ctx, s.Repo, itemID, qty, s.Log)
			return nil, err
		}
		updated := *it
		updated.Quantity = newQty
		updated.Status = newStatus
		updated.Version = it.Version + 1
		return &updated, nil
	}
	return nil, fmt.Errorf("%w: item %s", ErrReservationConflict, itemID)
}

func (s *Store) UpdateItem(ctx context.Context, itemID uuid.UUID, patch ItemPatch, actorID string) (*InventoryItem, error) {
	it, err := s.Repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("%w: inventory item %s", ErrNotFound, itemID)
	}
	if _, err := s.authorizedHub(ctx, it.HubID, actorID); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.ProductName != nil {
		if strings.TrimSpace(*patch.ProductName) == "" {
			return nil, fmt.Errorf("%w: product name cannot be empty", ErrValidation)
		}
		fields["product_name"] = strings.TrimSpace(*patch.ProductName)
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}
	if patch.Unit != nil {
		fields["unit"] = *patch.Unit
	}
	if patch.PricePaise != nil {
		if *patch.PricePaise < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}
		fields["price_paise"] = *patch.PricePaise
	}
	if patch.FarmerName != nil {
		fields["farmer_name"] = *patch.FarmerName
	}
	if patch.HarvestDate != nil {
		fields["harvest_date"] = *patch.HarvestDate
	}
	if patch.ExpiryDate != nil {
		fields["expiry_date"] = *patch.ExpiryDate
	}
	if patch.Quality != nil {
		fields["quality"] = *patch.Quality
	}
	if patch.Status != nil {
		switch *patch.Status {
		case ItemAvailable, ItemReservedOut, ItemExpired:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *patch.Status)
		}
		fields["status"] = *patch.Status
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty patch", ErrValidation)
	}

	if _, err := s.Repo.UpdateItemFields(ctx, itemID, fields); err != nil {
		return nil, err
	}
	return s.Repo.GetItem(ctx, itemID)
}

func (s *Store) DeleteItem(ctx context.Context, itemID uuid.UUID, actorID string) error {
	it, err := s.Repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if it == nil {
		return fmt.Errorf("%w: inventory item %s", ErrNotFound, itemID)
	}
	if _, err := s.authorizedHub(ctx, it.HubID, actorID); err != nil {
		return err
	}
	_, err = s.Repo.DeleteItem(ctx, itemID)
	return err
}

func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (*InventoryItem, error) {
	it, err := s.Repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("%w: inventory item %s", ErrNotFound, itemID)
	}
	return it, nil
}

func (s *Store) HubInventory(ctx context.Context, hubID uuid.UUID) ([]InventoryItem, error) {
	hub, err := s.Repo.GetHub(ctx, hubID)
	if err != nil {
		return nil, err
	}
	if hub == nil {
		return nil, fmt.Errorf("%w: hub %s", ErrNotFound, hubID)
	}
	return s.Repo.ListByHub(ctx, hubID)
}

func (s *Store) Movements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	return s.Repo.ListMovements(ctx, itemID)
}

// ExpireBatches flips available batches past their expiry date to expired.
// Returns how many rows were flipped.
func (s *Store) ExpireBatches(ctx context.Context, now time.Time) (int, error) {
	hubList, err := s.Repo.ListHubs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, hub := range hubList {
		items, err := s.Repo.ListByHub(ctx, hub.ID)
		if err != nil {
			return n, err
		}
		for _, it := range items {
			if it.Status != ItemAvailable || it.ExpiryDate.IsZero() || it.ExpiryDate.After(now) {
				continue
			}
			ok, err := s.Repo.UpdateItemFields(ctx, it.ID, map[string]any{"status": ItemExpired})
			if err != nil {
				return n, err
			}
			if ok {
				n++
				s.Log.Info("batch expired",
					zap.String("item_id", it.ID.String()),
					zap.String("batch_id", it.BatchID))
			}
		}
	}
	return n, nil
}

func (s *Store) authorizedHub(ctx context.Context, hubID uuid.UUID, actorID string) (*Hub, error) {
	hub, err := s.Repo.GetHub(ctx, hubID)
	if err != nil {
		return nil, err
	}
	if hub == nil {
		return nil, fmt.Errorf("%w: hub %s", ErrNotFound, hubID)
	}
	if hub.ManagerID != "" && actorID != hub.ManagerID {
		return nil, fmt.Errorf("%w: actor %q cannot mutate hub %s", ErrUnauthorized, actorID, hubID)
	}
	return hub, nil
}

// CreateHub registers a new distribution hub.
func (s *Store) CreateHub(ctx context.Context, h *Hub) (*Hub, error) {
	if strings.TrimSpace(h.Name) == "" {
		return nil, fmt.Errorf("%w: hub name required", ErrValidation)
	}
	if err := (geo.Coordinate{Lat: h.Lat, Lng: h.Lng}).Validate(); err != nil {
		return nil, err
	}
	if h.Status == "" {
		h.Status = HubActive
	}
	if err := s.Repo.CreateHub(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// DeleteHub is intentionally absent: hubs are never deleted while they own
// inventory, and nothing in the marketplace removes hubs at all today.

func (s *Store) GetHub(ctx context.Context, hubID uuid.UUID) (*Hub, error) {
	hub, err := s.Repo.GetHub(ctx, hubID)
	if err != nil {
		return nil, err
	}
	if hub == nil {
		return nil, fmt.Errorf("%w: hub %s", ErrNotFound, hubID)
	}
	return hub, nil
}

func (s *Store) ListHubs(ctx context.Context) ([]Hub, error) {
	return s.Repo.ListHubs(ctx)
}
