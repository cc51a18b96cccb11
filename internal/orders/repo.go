package orders

import (
	"context"

	"github.com/google/uuid"
)

type Repo interface {
	// Create persists the order with its items in one shot.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error) // (nil, nil) when missing
	// UpdateStatus moves the order from one status to another, conditioned on
	// the current status still being `from`. Reports whether the write landed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
}
