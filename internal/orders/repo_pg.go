package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct{ DB *pgxpool.Pool }

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo { return &PostgresRepo{DB: db} }

func (r *PostgresRepo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, hub_id, customer_id, subtotal_paise, delivery_fee_paise, total_paise,
			payment_status, payment_method, status, delivery_address, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.HubID, o.CustomerID, o.SubtotalPaise, o.DeliveryFeePaise, o.TotalPaise,
		o.PaymentStatus, o.PaymentMethod, o.Status, o.DeliveryAddress, o.Notes,
	)
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.OrderID = o.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, inventory_id, product_name, quantity, unit,
				price_paise, line_total_paise, farmer_id, farmer_name)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, it.OrderID, it.InventoryID, it.ProductName, it.Quantity, it.Unit,
			it.PricePaise, it.LineTotalPaise, it.FarmerID, it.FarmerName,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const orderCols = `id, hub_id, customer_id, subtotal_paise, delivery_fee_paise, total_paise,
	payment_status, payment_method, status, delivery_address, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.HubID, &o.CustomerID, &o.SubtotalPaise, &o.DeliveryFeePaise,
		&o.TotalPaise, &o.PaymentStatus, &o.PaymentMethod, &o.Status, &o.DeliveryAddress,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *PostgresRepo) loadItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, inventory_id, product_name, quantity, unit,
		       price_paise, line_total_paise, farmer_id, farmer_name
		FROM order_items WHERE order_id=$1 ORDER BY product_name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.InventoryID, &it.ProductName, &it.Quantity,
			&it.Unit, &it.PricePaise, &it.LineTotalPaise, &it.FarmerID, &it.FarmerName); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, from, to,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresRepo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}
