package hubs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/hubs"
)

func TestReserve_DecrementsAndRecordsMovement(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	it := newItem(t, repo, h.ID, "Tomatoes", 10, 8000)

	c := newCoordinator(repo)
	orderID := uuid.New()
	ctx := context.Background()

	movements, err := c.Reserve(ctx, []hubs.Line{{InventoryID: it.ID, Quantity: 4}}, "cust-1", orderID)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("want 1 movement id, got %d", len(movements))
	}

	got, _ := repo.GetItem(ctx, it.ID)
	if got.Quantity != 6 {
		t.Fatalf("want quantity 6, got %d", got.Quantity)
	}
	ms, _ := repo.ListMovements(ctx, it.ID)
	if len(ms) != 1 {
		t.Fatalf("want 1 ledger entry, got %d", len(ms))
	}
	m := ms[0]
	if m.Delta != -4 || m.Reason != hubs.ReasonReservation || m.OrderID == nil || *m.OrderID != orderID {
		t.Fatalf("unexpected movement: %+v", m)
	}
}

func TestReserve_LastUnitOnlyOneWinner(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	it := newItem(t, repo, h.ID, "Tomatoes", 1, 8000)

	c := newCoordinator(repo)
	ctx := context.Background()

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Reserve(ctx, []hubs.Line{{InventoryID: it.ID, Quantity: 1}}, "cust", uuid.New())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, hubs.ErrInsufficientStock), errors.Is(err, hubs.ErrReservationConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly 1 winner, got %d", wins)
	}
	got, _ := repo.GetItem(ctx, it.ID)
	if got.Quantity != 0 {
		t.Fatalf("want quantity 0, got %d", got.Quantity)
	}
	if got.Status != hubs.ItemReservedOut {
		t.Fatalf("want reserved_out at zero, got %s", got.Status)
	}
}

func TestReserve_TwoCompetingForOverlappingStock(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	it := newItem(t, repo, h.ID, "Tomatoes", 10, 8000)

	c := newCoordinator(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Reserve(ctx, []hubs.Line{{InventoryID: it.ID, Quantity: 6}}, "cust", uuid.New())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, hubs.ErrInsufficientStock) && !errors.Is(err, hubs.ErrReservationConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("10 units cannot cover two 6-unit orders: want 1 winner, got %d", wins)
	}
	got, _ := repo.GetItem(ctx, it.ID)
	if got.Quantity != 4 {
		t.Fatalf("want quantity 4 after single 6-unit reservation, got %d", got.Quantity)
	}
}

func TestReserve_AllOrNothingOnShortLine(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	ok := newItem(t, repo, h.ID, "Tomatoes", 10, 8000)
	short := newItem(t, repo, h.ID, "Onions", 2, 3000)

	c := newCoordinator(repo)
	ctx := context.Background()

	_, err := c.Reserve(ctx, []hubs.Line{
		{InventoryID: ok.ID, Quantity: 5},
		{InventoryID: short.ID, Quantity: 5},
	}, "cust", uuid.New())
	if !errors.Is(err, hubs.ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}

	a, _ := repo.GetItem(ctx, ok.ID)
	b, _ := repo.GetItem(ctx, short.ID)
	if a.Quantity != 10 || b.Quantity != 2 {
		t.Fatalf("no line should be decremented: got %d and %d", a.Quantity, b.Quantity)
	}
	ms, _ := repo.ListMovements(ctx, ok.ID)
	if len(ms) != 0 {
		t.Fatalf("validation-phase failure should leave no ledger entries, got %d", len(ms))
	}
}

func TestReserve_MultiLineSuccessOneMovementPerLine(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	a := newItem(t, repo, h.ID, "Tomatoes", 10, 8000)
	b := newItem(t, repo, h.ID, "Onions", 10, 3000)

	c := newCoordinator(repo)
	ctx := context.Background()
	orderID := uuid.New()

	movements, err := c.Reserve(ctx, []hubs.Line{
		{InventoryID: a.ID, Quantity: 3},
		{InventoryID: b.ID, Quantity: 7},
	}, "cust", orderID)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("want 2 movement ids, got %d", len(movements))
	}

	ga, _ := repo.GetItem(ctx, a.ID)
	gb, _ := repo.GetItem(ctx, b.ID)
	if ga.Quantity != 7 || gb.Quantity != 3 {
		t.Fatalf("want 7 and 3, got %d and %d", ga.Quantity, gb.Quantity)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		ms, _ := repo.ListMovements(ctx, id)
		if len(ms) != 1 {
			t.Fatalf("want exactly one ledger entry per line, item %s has %d", id, len(ms))
		}
	}
}

func TestReserve_LedgerWriteFailureLeavesNoTrace(t *testing.T) {
	mem := hubs.NewMemRepo()
	h := newHub(t, mem, "Hub", 13.0, 77.6)
	a := newItem(t, mem, h.ID, "Tomatoes", 10, 8000)
	b := newItem(t, mem, h.ID, "Onions", 10, 3000)

	// Fail the ledger write for whichever line commits second, so the first
	// line has already been decremented and recorded when the fault hits.
	first, second := a, b
	if b.ID.String() < a.ID.String() {
		first, second = b, a
	}
	repo := &failingLedgerRepo{MemRepo: mem, failFor: second.ID}
	c := &hubs.Coordinator{Repo: repo, Attempts: 3, Backoff: time.Millisecond, Log: zap.NewNop()}
	ctx := context.Background()

	_, err := c.Reserve(ctx, []hubs.Line{
		{InventoryID: a.ID, Quantity: 4},
		{InventoryID: b.ID, Quantity: 4},
	}, "cust", uuid.New())
	if err == nil {
		t.Fatal("want the ledger failure surfaced")
	}

	for _, it := range []*hubs.InventoryItem{a, b} {
		got, _ := mem.GetItem(ctx, it.ID)
		if got.Quantity != 10 {
			t.Fatalf("item %s must be restored to 10, got %d", it.ID, got.Quantity)
		}
		if got.Status != hubs.ItemAvailable {
			t.Fatalf("item %s should stay available, got %s", it.ID, got.Status)
		}
	}

	ms, _ := mem.ListMovements(ctx, second.ID)
	if len(ms) != 0 {
		t.Fatalf("unrecorded decrement must be undone without entries, got %d", len(ms))
	}
	ms, _ = mem.ListMovements(ctx, first.ID)
	sum := 0
	for _, m := range ms {
		sum += m.Delta
	}
	if sum != 0 {
		t.Fatalf("ledger for the rolled-back line must net to zero, got %d over %d entries", sum, len(ms))
	}
}

func TestReserve_Validation(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	it := newItem(t, repo, h.ID, "Tomatoes", 10, 8000)
	c := newCoordinator(repo)
	ctx := context.Background()

	if _, err := c.Reserve(ctx, nil, "cust", uuid.New()); !errors.Is(err, hubs.ErrValidation) {
		t.Fatalf("empty lines: want ErrValidation, got %v", err)
	}
	if _, err := c.Reserve(ctx, []hubs.Line{{InventoryID: it.ID, Quantity: 0}}, "cust", uuid.New()); !errors.Is(err, hubs.ErrValidation) {
		t.Fatalf("zero qty: want ErrValidation, got %v", err)
	}
	dup := []hubs.Line{{InventoryID: it.ID, Quantity: 1}, {InventoryID: it.ID, Quantity: 1}}
	if _, err := c.Reserve(ctx, dup, "cust", uuid.New()); !errors.Is(err, hubs.ErrValidation) {
		t.Fatalf("duplicate lines: want ErrValidation, got %v", err)
	}
	if _, err := c.Reserve(ctx, []hubs.Line{{InventoryID: uuid.New(), Quantity: 1}}, "cust", uuid.New()); !errors.Is(err, hubs.ErrNotFound) {
		t.Fatalf("unknown item: want ErrNotFound, got %v", err)
	}
}

func TestReserve_ConcurrentDisjointLinesBothSucceed(t *testing.T) {
	repo := hubs.NewMemRepo()
	h := newHub(t, repo, "Hub", 13.0, 77.6)
	a := newItem(t, repo, h.ID, "Tomatoes", 5, 8000)
	b := newItem(t, repo, h.ID, "Onions", 5, 3000)

	c := newCoordinator(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	lines := [][]hubs.Line{
		{{InventoryID: a.ID, Quantity: 5}},
		{{InventoryID: b.ID, Quantity: 5}},
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Reserve(ctx, lines[i], "cust", uuid.New())
		}(i)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("disjoint rows must not contend: %v, %v", errs[0], errs[1])
	}
}
