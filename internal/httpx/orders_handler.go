package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/greenmandi/hubstock/internal/geo"
	"github.com/greenmandi/hubstock/internal/hubs"
	"github.com/greenmandi/hubstock/internal/orders"
	"github.com/greenmandi/hubstock/internal/redisx"
)

// OrdersHandler exposes the availability-check and place-order contracts.
// The caller's identity arrives as an opaque X-Actor-Id set by the auth
// layer in front of this service.
type OrdersHandler struct {
	Service *orders.Service
	Redis   *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/availability/check", h.checkAvailability)
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders", h.listOrders)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

func actorID(r *http.Request) string { return r.Header.Get("X-Actor-Id") }

type availabilityReq struct {
	Items            []hubs.RequestLine `json:"items"`
	CustomerLocation *geo.Coordinate    `json:"customer_location,omitempty"`
}

type availabilityLineResp struct {
	Hub          hubResp  `json:"hub"`
	InventoryID  string   `json:"inventory_id"`
	AvailableQty int      `json:"available_quantity"`
	PricePaise   int64    `json:"price_paise"`
	Unit         string   `json:"unit,omitempty"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
}

type hubResp struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type alternativeResp struct {
	ProductName      string                 `json:"product_name"`
	RequestedQty     int                    `json:"requested_quantity"`
	AvailableOptions []availabilityLineResp `json:"available_options"`
}

type availabilityResp struct {
	Available          bool              `json:"available"`
	Hub                *hubResp          `json:"hub,omitempty"`
	DistanceKm         *float64          `json:"distance_km,omitempty"`
	AvailableItems     []matchLineResp   `json:"available_items,omitempty"`
	AlternativeOptions []alternativeResp `json:"alternative_options,omitempty"`
}

type matchLineResp struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	InventoryID string `json:"inventory_id"`
	PricePaise  int64  `json:"price_paise"`
	Unit        string `json:"unit,omitempty"`
}

func (h *OrdersHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	var req availabilityReq
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// Advisory read, safe to serve briefly stale.
	cacheKey := fmt.Sprintf(redisx.KeyAvailability, xxhash.Sum64(body))
	if s, err := h.Redis.Get(ctx, cacheKey).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	res, err := h.Service.CheckAvailability(ctx, req.Items, req.CustomerLocation)
	if err != nil {
		writeErr(w, err)
		return
	}

	resp := availabilityResp{Available: res.Available}
	if res.Available {
		resp.Hub = &hubResp{ID: res.Hub.ID.String(), Name: res.Hub.Name, Lat: res.Hub.Lat, Lng: res.Hub.Lng}
		if req.CustomerLocation != nil {
			d := res.DistanceKm
			resp.DistanceKm = &d
		}
		for _, l := range res.Lines {
			resp.AvailableItems = append(resp.AvailableItems, matchLineResp{
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				InventoryID: l.Item.ID.String(),
				PricePaise:  l.Item.PricePaise,
				Unit:        l.Item.Unit,
			})
		}
	} else {
		for _, alt := range res.Alternatives {
			a := alternativeResp{ProductName: alt.ProductName, RequestedQty: alt.RequestedQty}
			for _, o := range alt.Options {
				a.AvailableOptions = append(a.AvailableOptions, availabilityLineResp{
					Hub:          hubResp{ID: o.Hub.ID.String(), Name: o.Hub.Name, Lat: o.Hub.Lat, Lng: o.Hub.Lng},
					InventoryID:  o.InventoryID.String(),
					AvailableQty: o.AvailableQty,
					PricePaise:   o.PricePaise,
					Unit:         o.Unit,
					DistanceKm:   o.DistanceKm,
				})
			}
			resp.AlternativeOptions = append(resp.AlternativeOptions, a)
		}
	}

	if b, err := json.Marshal(resp); err == nil {
		_ = h.Redis.Set(ctx, cacheKey, b, redisx.TTLAvailability).Err()
	}
	writeJSON(w, http.StatusOK, resp)
}

type placeOrderReq struct {
	ExternalID       string             `json:"external_id,omitempty"`
	Items            []hubs.Line        `json:"items,omitempty"`
	Requests         []hubs.RequestLine `json:"requests,omitempty"`
	CustomerLocation *geo.Coordinate    `json:"customer_location,omitempty"`
	DeliveryAddress  string             `json:"delivery_address"`
	PaymentMethod    string             `json:"payment_method"`
	Notes            string             `json:"notes,omitempty"`
}

type placeOrderResp struct {
	OrderID               string `json:"order_id"`
	HubID                 string `json:"hub_id"`
	TotalPaise            int64  `json:"total_paise"`
	EstimatedDeliveryTime string `json:"estimated_delivery_time"`
	Idempotent            bool   `json:"idempotent,omitempty"`
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	customerID := actorID(r)
	if customerID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency: a repeated external_id returns the first order.
	var idemKey string
	if req.ExternalID != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderPlace, req.ExternalID)
		if prev, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && prev != "" {
			if id, err := uuid.Parse(prev); err == nil {
				if o, err := h.Service.GetOrder(ctx, id); err == nil {
					writeJSON(w, http.StatusOK, placeOrderResp{
						OrderID: o.ID.String(), HubID: o.HubID.String(),
						TotalPaise: o.TotalPaise, Idempotent: true,
					})
					return
				}
			}
		}
	}

	res, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderInput{
		CustomerID:      customerID,
		Lines:           req.Items,
		Requests:        req.Requests,
		Location:        req.CustomerLocation,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, res.OrderID.String(), redisx.TTLIdempotency).Err()
	}
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, res.OrderID)
	_ = h.Redis.Set(ctx, statusKey, `{"status":"confirmed"}`, redisx.TTLStatusCache).Err()

	writeJSON(w, http.StatusCreated, placeOrderResp{
		OrderID:               res.OrderID.String(),
		HubID:                 res.HubID.String(),
		TotalPaise:            res.TotalPaise,
		EstimatedDeliveryTime: res.EstimatedDelivery.Format(time.RFC3339),
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}

	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, o.Status), redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID := actorID(r)
	if customerID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListByCustomer(ctx, customerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type cancelReq struct {
	Reason string `json:"reason,omitempty"`
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req cancelReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CancelOrder(ctx, id, actorID(r), req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, statusKey, `{"status":"cancelled"}`, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, o)
}
