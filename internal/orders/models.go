package orders

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is pinned to a single hub; items resolving to more than one hub are
// rejected before anything is persisted.
type Order struct {
	ID               uuid.UUID
	HubID            uuid.UUID
	CustomerID       string
	Items            []OrderItem
	SubtotalPaise    int64
	DeliveryFeePaise int64
	TotalPaise       int64
	PaymentStatus    PaymentStatus
	PaymentMethod    string
	Status           Status
	DeliveryAddress  string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderItem records the specific inventory batch consumed and the price it
// was sold at. Immutable once the order is confirmed.
type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	InventoryID    uuid.UUID
	ProductName    string
	Quantity       int
	Unit           string
	PricePaise     int64
	LineTotalPaise int64
	FarmerID       string
	FarmerName     string
}
