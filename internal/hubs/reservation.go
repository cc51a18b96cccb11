package hubs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator commits stock to confirmed orders. It is the only component
// that decrements inventory, and the authoritative check against overselling
// lives here: every line is re-validated at commit time under optimistic
// concurrency, regardless of what earlier searches reported.
type Coordinator struct {
	Repo     Repo
	Attempts int           // CAS retries per line before giving up
	Backoff  time.Duration // sleep between retries
	Log      *zap.Logger
}

const (
	defaultAttempts = 3
	defaultBackoff  = 25 * time.Millisecond
)

type Line struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int       `json:"quantity"`
}

// Reserve atomically decrements every line or none of them. Each committed
// line appends one StockMovement tagged with the order. On a mid-commit
// shortfall or retry exhaustion, lines already decremented are restored with
// a compensating movement before the error surfaces.
func (c *Coordinator) Reserve(ctx context.Context, lines []Line, customerID string, orderID uuid.UUID) ([]uuid.UUID, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no reservation lines", ErrValidation)
	}
	seen := make(map[uuid.UUID]bool, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0 for item %s", ErrValidation, l.InventoryID)
		}
		if seen[l.InventoryID] {
			return nil, fmt.Errorf("%w: duplicate inventory item %s", ErrValidation, l.InventoryID)
		}
		seen[l.InventoryID] = true
	}

	// Deterministic order keeps concurrent multi-line reservations from
	// chasing each other's rows in opposite directions.
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].InventoryID.String() < sorted[j].InventoryID.String()
	})

	// Phase 1: validate every line before touching anything.
	for _, l := range sorted {
		it, err := c.Repo.GetItem(ctx, l.InventoryID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, fmt.Errorf("%w: inventory item %s", ErrNotFound, l.InventoryID)
		}
		if it.Status != ItemAvailable || it.Quantity < l.Quantity {
			return nil, fmt.Errorf("%w: item %s has %d, need %d",
				ErrInsufficientStock, l.InventoryID, it.Quantity, l.Quantity)
		}
	}

	// Phase 2: commit line by line under CAS.
	var committed []Line
	var movementIDs []uuid.UUID
	for _, l := range sorted {
		mid, err := c.commitLine(ctx, l, customerID, orderID)
		if err != nil {
			c.rollback(ctx, committed, customerID, orderID)
			return nil, err
		}
		committed = append(committed, l)
		movementIDs = append(movementIDs, mid)
	}
	return movementIDs, nil
}

func (c *Coordinator) commitLine(ctx context.Context, l Line, customerID string, orderID uuid.UUID) (uuid.UUID, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	for attempt := 0; attempt < attempts; attempt++ {
		it, err := c.Repo.GetItem(ctx, l.InventoryID)
		if err != nil {
			return uuid.Nil, err
		}
		if it == nil {
			return uuid.Nil, fmt.Errorf("%w: inventory item %s", ErrNotFound, l.InventoryID)
		}
		if it.Status != ItemAvailable || it.Quantity < l.Quantity {
			return uuid.Nil, fmt.Errorf("%w: item %s has %d, need %d",
				ErrInsufficientStock, l.InventoryID, it.Quantity, l.Quantity)
		}

		newQty := it.Quantity - l.Quantity
		newStatus := ItemAvailable
		if newQty == 0 {
			newStatus = ItemReservedOut
		}
		ok, err := c.Repo.CompareAndSwapQuantity(ctx, l.InventoryID, it.Version, newQty, newStatus)
		if err != nil {
			return uuid.Nil, err
		}
		if !ok {
			// Lost the race; someone else moved this row. Re-read and retry.
			select {
			case <-ctx.Done():
				return uuid.Nil, ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		m := &StockMovement{
			ItemID:  l.InventoryID,
			Delta:   -l.Quantity,
			Reason:  ReasonReservation,
			ActorID: customerID,
			OrderID: &orderID,
		}
		if err := c.Repo.AppendMovement(ctx, m); err != nil {
			// The decrement landed but the ledger write did not. Undo the
			// decrement without a movement so state and ledger stay in step.
			revertUnrecorded(ctx, c.Repo, l.InventoryID, -l.Quantity, c.Log)
			return uuid.Nil, err
		}
		return m.ID, nil
	}
	return uuid.Nil, fmt.Errorf("%w: item %s", ErrReservationConflict, l.InventoryID)
}

// rollback restores lines that were decremented before a later line failed.
// Restores go through the same CAS discipline; a restore that cannot land is
// logged loudly since it leaves the ledger as the recovery source.
func (c *Coordinator) rollback(ctx context.Context, committed []Line, customerID string, orderID uuid.UUID) {
	for _, l := range committed {
		if err := c.restoreLine(ctx, l, customerID, orderID); err != nil {
			c.Log.Error("reservation rollback failed; ledger holds the record",
				zap.String("item_id", l.InventoryID.String()),
				zap.String("order_id", orderID.String()),
				zap.Int("quantity", l.Quantity),
				zap.Error(err))
		}
	}
}

// revertUnrecorded undoes a quantity change whose ledger write failed. The
// applied delta and its reversal both stay off the ledger, so replaying the
// movements still reconstructs the item's quantity.
func revertUnrecorded(ctx context.Context, repo Repo, itemID uuid.UUID, delta int, log *zap.Logger) {
	for attempt := 0; attempt < defaultAttempts*2; attempt++ {
		it, err := repo.GetItem(ctx, itemID)
		if err != nil || it == nil {
			break
		}
		newQty := it.Quantity - delta
		if newQty < 0 {
			newQty = 0
		}
		newStatus := it.Status
		switch {
		case newQty == 0 && newStatus == ItemAvailable:
			newStatus = ItemReservedOut
		case newQty > 0 && newStatus == ItemReservedOut:
			newStatus = ItemAvailable
		}
		ok, err := repo.CompareAndSwapQuantity(ctx, itemID, it.Version, newQty, newStatus)
		if err != nil {
			break
		}
		if ok {
			return
		}
		time.Sleep(defaultBackoff)
	}
	log.Error("could not revert unaudited quantity change",
		zap.String("item_id", itemID.String()),
		zap.Int("delta", delta))
}

func (c *Coordinator) restoreLine(ctx context.Context, l Line, customerID string, orderID uuid.UUID) error {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	// Restores get a longer leash than reserves: failing here strands stock.
	for attempt := 0; attempt < attempts*2; attempt++ {
		it, err := c.Repo.GetItem(ctx, l.InventoryID)
		if err != nil {
			return err
		}
		if it == nil {
			return fmt.Errorf("%w: inventory item %s", ErrNotFound, l.InventoryID)
		}
		newQty := it.Quantity + l.Quantity
		ok, err := c.Repo.CompareAndSwapQuantity(ctx, l.InventoryID, it.Version, newQty, ItemAvailable)
		if err != nil {
			return err
		}
		if ok {
			return c.Repo.AppendMovement(ctx, &StockMovement{
				ItemID:  l.InventoryID,
				Delta:   l.Quantity,
				Reason:  ReasonReservationRollback,
				ActorID: customerID,
				OrderID: &orderID,
			})
		}
		time.Sleep(defaultBackoff)
	}
	return fmt.Errorf("%w: restore of item %s", ErrReservationConflict, l.InventoryID)
}
