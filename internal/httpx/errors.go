package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greenmandi/hubstock/internal/geo"
	"github.com/greenmandi/hubstock/internal/hubs"
	"github.com/greenmandi/hubstock/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, hubs.ErrValidation),
		errors.Is(err, orders.ErrValidation),
		errors.Is(err, geo.ErrInvalidCoordinate):
		code = http.StatusBadRequest
	case errors.Is(err, hubs.ErrNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, hubs.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, orders.ErrCrossHubOrder),
		errors.Is(err, orders.ErrNoHubAvailable),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, hubs.ErrInsufficientStock),
		errors.Is(err, hubs.ErrReservationConflict):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
