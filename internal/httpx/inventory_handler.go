package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenmandi/hubstock/internal/hubs"
)

// InventoryHandler exposes hub and inventory management. Quantity changes
// are routed through the audited path; everything else goes through the
// whitelisted metadata patch.
type InventoryHandler struct {
	Store *hubs.Store
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Post("/hubs", h.createHub)
	r.Get("/hubs", h.listHubs)
	r.Get("/hubs/{id}", h.getHub)
	r.Get("/hubs/{id}/inventory", h.hubInventory)
	r.Post("/inventory", h.addItem)
	r.Get("/inventory/{id}", h.getItem)
	r.Patch("/inventory/{id}", h.patchItem)
	r.Delete("/inventory/{id}", h.deleteItem)
	r.Get("/inventory/{id}/movements", h.movements)
}

type createHubReq struct {
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	CapacityKg     int     `json:"capacity_kg"`
	OperatingHours string  `json:"operating_hours"`
	ManagerID      string  `json:"manager_id"`
}

func (h *InventoryHandler) createHub(w http.ResponseWriter, r *http.Request) {
	var req createHubReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	hub, err := h.Store.CreateHub(ctx, &hubs.Hub{
		Name:           req.Name,
		Lat:            req.Lat,
		Lng:            req.Lng,
		CapacityKg:     req.CapacityKg,
		OperatingHours: req.OperatingHours,
		ManagerID:      req.ManagerID,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hub)
}

func (h *InventoryHandler) listHubs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	list, err := h.Store.ListHubs(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *InventoryHandler) getHub(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hub id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	hub, err := h.Store.GetHub(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (h *InventoryHandler) hubInventory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hub id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	items, err := h.Store.HubInventory(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type addItemReq struct {
	HubID       string     `json:"hub_id"`
	ProductName string     `json:"product_name"`
	Category    string     `json:"category,omitempty"`
	Quantity    int        `json:"quantity"`
	Unit        string     `json:"unit,omitempty"`
	PricePaise  int64      `json:"price_paise"`
	FarmerID    string     `json:"farmer_id,omitempty"`
	FarmerName  string     `json:"farmer_name,omitempty"`
	HarvestDate *time.Time `json:"harvest_date,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	Quality     string     `json:"quality,omitempty"`
}

func (h *InventoryHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	hubID, err := uuid.Parse(req.HubID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hub id"})
		return
	}

	in := hubs.ItemInput{
		HubID:       hubID,
		ProductName: req.ProductName,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		PricePaise:  req.PricePaise,
		FarmerID:    req.FarmerID,
		FarmerName:  req.FarmerName,
		Quality:     req.Quality,
	}
	if req.HarvestDate != nil {
		in.HarvestDate = *req.HarvestDate
	}
	if req.ExpiryDate != nil {
		in.ExpiryDate = *req.ExpiryDate
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	it, err := h.Store.AddItem(ctx, in, actorID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *InventoryHandler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	it, err := h.Store.GetItem(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type patchItemReq struct {
	Quantity *int   `json:"quantity,omitempty"`
	Reason   string `json:"reason,omitempty"`

	ProductName *string          `json:"product_name,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Unit        *string          `json:"unit,omitempty"`
	PricePaise  *int64           `json:"price_paise,omitempty"`
	FarmerName  *string          `json:"farmer_name,omitempty"`
	HarvestDate *time.Time       `json:"harvest_date,omitempty"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	Quality     *string          `json:"quality,omitempty"`
	Status      *hubs.ItemStatus `json:"status,omitempty"`
}

func (p patchItemReq) hasMetadata() bool {
	return p.ProductName != nil || p.Category != nil || p.Unit != nil || p.PricePaise != nil ||
		p.FarmerName != nil || p.HarvestDate != nil || p.ExpiryDate != nil || p.Quality != nil ||
		p.Status != nil
}

func (h *InventoryHandler) patchItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}
	var req patchItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	actor := actorID(r)

	var it *hubs.InventoryItem
	if req.Quantity != nil {
		reason := req.Reason
		if reason == "" {
			reason = hubs.ReasonManualAdjustment
		}
		it, err = h.Store.UpdateQuantity(ctx, id, *req.Quantity, reason, actor)
		if err != nil {
			writeErr(w, err)
			return
		}
	}
	if req.hasMetadata() {
		it, err = h.Store.UpdateItem(ctx, id, hubs.ItemPatch{
			ProductName: req.ProductName,
			Category:    req.Category,
			Unit:        req.Unit,
			PricePaise:  req.PricePaise,
			FarmerName:  req.FarmerName,
			HarvestDate: req.HarvestDate,
			ExpiryDate:  req.ExpiryDate,
			Quality:     req.Quality,
			Status:      req.Status,
		}, actor)
		if err != nil {
			writeErr(w, err)
			return
		}
	}
	if it == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty patch"})
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.DeleteItem(ctx, id, actorID(r)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) movements(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	ms, err := h.Store.Movements(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}
