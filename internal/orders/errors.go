package orders

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCrossHubOrder     = errors.New("order items span more than one hub")
	ErrNoHubAvailable    = errors.New("no single hub can fulfil the order")
	ErrInvalidTransition = errors.New("invalid order status transition")
)
