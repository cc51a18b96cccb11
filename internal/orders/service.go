package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/geo"
	"github.com/greenmandi/hubstock/internal/hubs"
)

// Notifier is the fire-and-forget channel invoked after an order reaches a
// terminal state. Delivery failures must never affect order state, so the
// interface has no error returns.
type Notifier interface {
	OrderConfirmed(o *Order)
	OrderFailed(o *Order, reason string)
	OrderCancelled(o *Order, reason string)
}

type NopNotifier struct{}

func (NopNotifier) OrderConfirmed(*Order)         {}
func (NopNotifier) OrderFailed(*Order, string)    {}
func (NopNotifier) OrderCancelled(*Order, string) {}

// Service assembles, prices and commits orders. Pricing always comes from
// the inventory rows, never from client input.
type Service struct {
	Orders           Repo
	Hubs             hubs.Repo
	Inventory        *hubs.Store
	Matcher          *hubs.Matcher
	Resolver         *hubs.Resolver
	Reserver         *hubs.Coordinator
	Notifier         Notifier
	DeliveryFeePaise int64
	Log              *zap.Logger
}

// CreateOrder validates and persists a pending order priced from the given
// inventory rows. hubID may be uuid.Nil, in which case it is derived from the
// first item; either way every item must belong to that one hub.
func (s *Service) CreateOrder(ctx context.Context, hubID uuid.UUID, customerID string, lines []hubs.Line, deliveryAddress, paymentMethod, notes string) (*Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id required", ErrValidation)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", ErrValidation)
	}
	if strings.TrimSpace(deliveryAddress) == "" {
		return nil, fmt.Errorf("%w: delivery address required", ErrValidation)
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}

	items := make([]OrderItem, 0, len(lines))
	var subtotal int64
	for _, l := range lines {
		it, err := s.Hubs.GetItem(ctx, l.InventoryID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, fmt.Errorf("%w: inventory item %s", hubs.ErrNotFound, l.InventoryID)
		}
		if hubID == uuid.Nil {
			hubID = it.HubID
		} else if it.HubID != hubID {
			return nil, fmt.Errorf("%w: item %s belongs to hub %s, order is for hub %s",
				ErrCrossHubOrder, it.ID, it.HubID, hubID)
		}
		line := int64(l.Quantity) * it.PricePaise
		subtotal += line
		items = append(items, OrderItem{
			InventoryID:    it.ID,
			ProductName:    it.ProductName,
			Quantity:       l.Quantity,
			Unit:           it.Unit,
			PricePaise:     it.PricePaise,
			LineTotalPaise: line,
			FarmerID:       it.FarmerID,
			FarmerName:     it.FarmerName,
		})
	}

	hub, err := s.Hubs.GetHub(ctx, hubID)
	if err != nil {
		return nil, err
	}
	if hub == nil {
		return nil, fmt.Errorf("%w: hub %s", hubs.ErrNotFound, hubID)
	}

	o := &Order{
		ID:               uuid.New(),
		HubID:            hubID,
		CustomerID:       customerID,
		Items:            items,
		SubtotalPaise:    subtotal,
		DeliveryFeePaise: s.DeliveryFeePaise,
		TotalPaise:       subtotal + s.DeliveryFeePaise,
		PaymentStatus:    PaymentPending,
		PaymentMethod:    paymentMethod,
		Status:           StatusPending,
		DeliveryAddress:  deliveryAddress,
		Notes:            notes,
	}
	if err := s.Orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

type PlaceOrderInput struct {
	CustomerID      string
	Lines           []hubs.Line        // explicit inventory rows; when empty, Requests+Location drive matching
	Requests        []hubs.RequestLine // product/quantity lines for hub matching
	Location        *geo.Coordinate
	DeliveryAddress string
	PaymentMethod   string
	Notes           string
}

type PlaceOrderResult struct {
	OrderID           uuid.UUID
	HubID             uuid.UUID
	TotalPaise        int64
	EstimatedDelivery time.Time
}

// PlaceOrder runs the full flow: resolve a hub, persist a pending order,
// reserve stock, then confirm. A reservation failure moves the order to
// failed — never left pending — before the error is returned.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	lines := in.Lines
	var distanceKm float64
	haveDistance := false

	if len(lines) == 0 {
		if in.Location == nil || len(in.Requests) == 0 {
			return nil, fmt.Errorf("%w: either inventory lines or product requests with a location are required", ErrValidation)
		}
		match, err := s.Matcher.FindNearestFullMatch(ctx, *in.Location, in.Requests)
		if err != nil {
			return nil, err
		}
		if match == nil {
			return nil, ErrNoHubAvailable
		}
		for _, ml := range match.Lines {
			lines = append(lines, hubs.Line{InventoryID: ml.Item.ID, Quantity: ml.Quantity})
		}
		distanceKm = match.DistanceKm
		haveDistance = true
	}

	o, err := s.CreateOrder(ctx, uuid.Nil, in.CustomerID, lines, in.DeliveryAddress, in.PaymentMethod, in.Notes)
	if err != nil {
		return nil, err
	}

	if _, err := s.Reserver.Reserve(ctx, lines, in.CustomerID, o.ID); err != nil {
		if ok, uerr := s.Orders.UpdateStatus(ctx, o.ID, StatusPending, StatusFailed); uerr != nil || !ok {
			s.Log.Error("could not mark order failed",
				zap.String("order_id", o.ID.String()), zap.Error(uerr))
		}
		o.Status = StatusFailed
		s.Notifier.OrderFailed(o, err.Error())
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}

	if ok, err := s.Orders.UpdateStatus(ctx, o.ID, StatusPending, StatusConfirmed); err != nil || !ok {
		s.Log.Error("could not mark order confirmed",
			zap.String("order_id", o.ID.String()), zap.Error(err))
	}
	o.Status = StatusConfirmed
	s.Notifier.OrderConfirmed(o)

	if !haveDistance && in.Location != nil {
		if hub, err := s.Hubs.GetHub(ctx, o.HubID); err == nil && hub != nil {
			if d, err := geo.DistanceKm(*in.Location, geo.Coordinate{Lat: hub.Lat, Lng: hub.Lng}); err == nil {
				distanceKm = d
				haveDistance = true
			}
		}
	}

	s.Log.Info("order placed",
		zap.String("order_id", o.ID.String()),
		zap.String("hub_id", o.HubID.String()),
		zap.Int64("total_paise", o.TotalPaise))

	return &PlaceOrderResult{
		OrderID:           o.ID,
		HubID:             o.HubID,
		TotalPaise:        o.TotalPaise,
		EstimatedDelivery: time.Now().UTC().Add(estimateDelivery(distanceKm, haveDistance)),
	}, nil
}

// estimateDelivery: handling time plus travel at a rough average speed,
// rounded up to the next quarter hour.
func estimateDelivery(distanceKm float64, known bool) time.Duration {
	if !known {
		return 2 * time.Hour
	}
	d := 45*time.Minute + time.Duration(distanceKm/30*float64(time.Hour))
	if rem := d % (15 * time.Minute); rem > 0 {
		d += 15*time.Minute - rem
	}
	return d
}

// CancelOrder moves a confirmed order to cancelled and restocks every line
// through the audited inventory path with reason "cancellation".
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID, actorID, reason string) (*Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	ok, err := s.Orders.UpdateStatus(ctx, orderID, o.Status, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, orderID)
	}
	o.Status = StatusCancelled

	for _, it := range o.Items {
		if _, err := s.Inventory.Restock(ctx, it.InventoryID, it.Quantity, hubs.ReasonCancellation, actorID, &o.ID); err != nil {
			s.Log.Error("cancellation restock failed",
				zap.String("order_id", o.ID.String()),
				zap.String("item_id", it.InventoryID.String()),
				zap.Error(err))
		}
	}
	s.Notifier.OrderCancelled(o, reason)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.Orders.ListByCustomer(ctx, customerID)
}

type AlternativeLine struct {
	ProductName  string        `json:"product_name"`
	RequestedQty int           `json:"requested_quantity"`
	Options      []hubs.Option `json:"available_options"`
}

type AvailabilityResult struct {
	Available    bool
	Hub          *hubs.Hub
	DistanceKm   float64
	Lines        []hubs.MatchLine
	Alternatives []AlternativeLine
}

// CheckAvailability answers the pre-order feasibility question: a single hub
// covering everything when one exists, otherwise per-line alternatives built
// from the resolver (the documented degraded path, not an error).
func (s *Service) CheckAvailability(ctx context.Context, lines []hubs.RequestLine, loc *geo.Coordinate) (*AvailabilityResult, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no items requested", ErrValidation)
	}

	if loc != nil {
		match, err := s.Matcher.FindNearestFullMatch(ctx, *loc, lines)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return &AvailabilityResult{
				Available:  true,
				Hub:        &match.Hub,
				DistanceKm: match.DistanceKm,
				Lines:      match.Lines,
			}, nil
		}
	}

	alts := make([]AlternativeLine, 0, len(lines))
	for _, l := range lines {
		opts, err := s.Resolver.CheckAvailability(ctx, l.ProductName, l.Quantity, loc)
		if err != nil {
			return nil, err
		}
		alts = append(alts, AlternativeLine{ProductName: l.ProductName, RequestedQty: l.Quantity, Options: opts})
	}
	return &AvailabilityResult{Available: false, Alternatives: alts}, nil
}
