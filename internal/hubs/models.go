package hubs

import (
	"time"

	"github.com/google/uuid"
)

type HubStatus string

const (
	HubActive      HubStatus = "active"
	HubInactive    HubStatus = "inactive"
	HubMaintenance HubStatus = "maintenance"
)

type Hub struct {
	ID             uuid.UUID
	Name           string
	Lat            float64
	Lng            float64
	CapacityKg     int
	CurrentLoadKg  int
	OperatingHours string
	Status         HubStatus
	ManagerID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LoadRatio is currentLoad/capacity, used to break distance ties in hub
// matching. A hub without a declared capacity counts as fully loaded.
func (h Hub) LoadRatio() float64 {
	if h.CapacityKg <= 0 {
		return 1
	}
	return float64(h.CurrentLoadKg) / float64(h.CapacityKg)
}

type ItemStatus string

const (
	ItemAvailable   ItemStatus = "available"
	ItemReservedOut ItemStatus = "reserved_out"
	ItemExpired     ItemStatus = "expired"
)

// InventoryItem is one priced, dated batch of a product at a hub. Quantity is
// only ever changed through the audited path (Store.UpdateQuantity or the
// reservation coordinator); Version backs the optimistic concurrency check.
type InventoryItem struct {
	ID          uuid.UUID
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
	BatchID     string
	Status      ItemStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockMovement is an append-only ledger entry; replaying deltas per item
// reconstructs its quantity history.
type StockMovement struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	Delta     int
	Reason    string
	ActorID   string
	OrderID   *uuid.UUID
	CreatedAt time.Time
}

const (
	ReasonInitialStock        = "initial_stock"
	ReasonManualAdjustment    = "manual_adjustment"
	ReasonReservation         = "reservation"
	ReasonReservationRollback = "reservation_rollback"
	ReasonCancellation        = "cancellation"
)
