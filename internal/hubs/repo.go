package hubs

import (
	"context"

	"github.com/google/uuid"
)

// The engine is written against these narrow repository capabilities rather
// than a concrete database client. PostgresRepo implements them over pgx;
// MemRepo implements them in process for tests and local development.

type HubRepo interface {
	CreateHub(ctx context.Context, h *Hub) error
	GetHub(ctx context.Context, id uuid.UUID) (*Hub, error) // (nil, nil) when missing
	ListHubs(ctx context.Context) ([]Hub, error)
	UpdateHub(ctx context.Context, h *Hub) error
}

type InventoryRepo interface {
	CreateItem(ctx context.Context, it *InventoryItem) error
	GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) // (nil, nil) when missing
	ListByHub(ctx context.Context, hubID uuid.UUID) ([]InventoryItem, error)
	// ListByProduct matches productName case-insensitively, exact.
	ListByProduct(ctx context.Context, productName string) ([]InventoryItem, error)
	// UpdateItemFields patches whitelisted metadata columns. Attempts to touch
	// quantity or version are rejected with ErrValidation.
	UpdateItemFields(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error)
	// CompareAndSwapQuantity writes newQty and newStatus only if the row's
	// version still equals expectedVersion. Reports whether the write landed.
	CompareAndSwapQuantity(ctx context.Context, id uuid.UUID, expectedVersion int64, newQty int, newStatus ItemStatus) (bool, error)
	DeleteItem(ctx context.Context, id uuid.UUID) (bool, error)
}

type MovementRepo interface {
	AppendMovement(ctx context.Context, m *StockMovement) error
	ListMovements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error)
}

// Repo bundles the capability set most components need.
type Repo interface {
	HubRepo
	InventoryRepo
	MovementRepo
}
