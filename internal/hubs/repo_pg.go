package hubs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct{ DB *pgxpool.Pool }

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo { return &PostgresRepo{DB: db} }

func (r *PostgresRepo) CreateHub(ctx context.Context, h *Hub) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO hubs(id, name, lat, lng, capacity_kg, current_load_kg, operating_hours, status, manager_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.Name, h.Lat, h.Lng, h.CapacityKg, h.CurrentLoadKg, h.OperatingHours, h.Status, h.ManagerID,
	)
	return err
}

const hubCols = `id, name, lat, lng, capacity_kg, current_load_kg, operating_hours, status, manager_id, created_at, updated_at`

func scanHub(row pgx.Row) (*Hub, error) {
	var h Hub
	err := row.Scan(&h.ID, &h.Name, &h.Lat, &h.Lng, &h.CapacityKg, &h.CurrentLoadKg,
		&h.OperatingHours, &h.Status, &h.ManagerID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *PostgresRepo) GetHub(ctx context.Context, id uuid.UUID) (*Hub, error) {
	h, err := scanHub(r.DB.QueryRow(ctx, `SELECT `+hubCols+` FROM hubs WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return h, err
}

func (r *PostgresRepo) ListHubs(ctx context.Context) ([]Hub, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+hubCols+` FROM hubs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hub
	for rows.Next() {
		h, err := scanHub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateHub(ctx context.Context, h *Hub) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE hubs SET name=$2, lat=$3, lng=$4, capacity_kg=$5, current_load_kg=$6,
		       operating_hours=$7, status=$8, manager_id=$9, updated_at=now()
		WHERE id=$1`,
		h.ID, h.Name, h.Lat, h.Lng, h.CapacityKg, h.CurrentLoadKg, h.OperatingHours, h.Status, h.ManagerID,
	)
	return err
}

const itemCols = `id, hub_id, product_name, category, quantity, unit, price_paise,
	farmer_id, farmer_name, harvest_date, expiry_date, quality, batch_id, status, version,
	created_at, updated_at`

func scanItem(row pgx.Row) (*InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(&it.ID, &it.HubID, &it.ProductName, &it.Category, &it.Quantity, &it.Unit,
		&it.PricePaise, &it.FarmerID, &it.FarmerName, &it.HarvestDate, &it.ExpiryDate,
		&it.Quality, &it.BatchID, &it.Status, &it.Version, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *PostgresRepo) CreateItem(ctx context.Context, it *InventoryItem) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO inventory_items(id, hub_id, product_name, category, quantity, unit, price_paise,
			farmer_id, farmer_name, harvest_date, expiry_date, quality, batch_id, status, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		it.ID, it.HubID, it.ProductName, it.Category, it.Quantity, it.Unit, it.PricePaise,
		it.FarmerID, it.FarmerName, it.HarvestDate, it.ExpiryDate, it.Quality, it.BatchID,
		it.Status, it.Version,
	)
	return err
}

func (r *PostgresRepo) GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	it, err := scanItem(r.DB.QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return it, err
}

func (r *PostgresRepo) listItems(ctx context.Context, where string, args ...any) ([]InventoryItem, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListByHub(ctx context.Context, hubID uuid.UUID) ([]InventoryItem, error) {
	return r.listItems(ctx, `hub_id=$1`, hubID)
}

func (r *PostgresRepo) ListByProduct(ctx context.Context, productName string) ([]InventoryItem, error) {
	return r.listItems(ctx, `lower(product_name)=lower($1)`, productName)
}

// Columns the metadata patch path may touch. Quantity and version are
// deliberately absent: quantity moves only through the audited CAS path.
var patchableItemCols = map[string]bool{
	"product_name": true,
	"category":     true,
	"unit":         true,
	"price_paise":  true,
	"farmer_name":  true,
	"harvest_date": true,
	"expiry_date":  true,
	"quality":      true,
	"status":       true,
}

func (r *PostgresRepo) UpdateItemFields(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: empty patch", ErrValidation)
	}
	set := make([]string, 0, len(fields)+1)
	args := []any{id}
	for col, v := range fields {
		if !patchableItemCols[col] {
			return false, fmt.Errorf("%w: field %q is not patchable", ErrValidation, col)
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	set = append(set, "updated_at=now()")

	ct, err := r.DB.Exec(ctx,
		`UPDATE inventory_items SET `+strings.Join(set, ", ")+` WHERE id=$1`, args...)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresRepo) CompareAndSwapQuantity(ctx context.Context, id uuid.UUID, expectedVersion int64, newQty int, newStatus ItemStatus) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE inventory_items
		SET quantity=$3, status=$4, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`,
		id, expectedVersion, newQty, newStatus,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresRepo) DeleteItem(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresRepo) AppendMovement(ctx context.Context, m *StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO stock_movements(id, item_id, delta, reason, actor_id, order_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.ItemID, m.Delta, m.Reason, m.ActorID, m.OrderID,
	)
	return err
}

func (r *PostgresRepo) ListMovements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, item_id, delta, reason, actor_id, order_id, created_at
		FROM stock_movements WHERE item_id=$1 ORDER BY created_at`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.Reason, &m.ActorID, &m.OrderID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
