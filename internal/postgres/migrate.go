package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS hubs (
	id              uuid PRIMARY KEY,
	name            text NOT NULL,
	lat             double precision NOT NULL,
	lng             double precision NOT NULL,
	capacity_kg     integer NOT NULL DEFAULT 0,
	current_load_kg integer NOT NULL DEFAULT 0,
	operating_hours text NOT NULL DEFAULT '',
	status          text NOT NULL DEFAULT 'active',
	manager_id      text NOT NULL DEFAULT '',
	created_at      timestamptz NOT NULL DEFAULT now(),
	updated_at      timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inventory_items (
	id           uuid PRIMARY KEY,
	hub_id       uuid NOT NULL REFERENCES hubs(id),
	product_name text NOT NULL,
	category     text NOT NULL DEFAULT '',
	quantity     integer NOT NULL CHECK (quantity >= 0),
	unit         text NOT NULL DEFAULT '',
	price_paise  bigint NOT NULL CHECK (price_paise >= 0),
	farmer_id    text NOT NULL DEFAULT '',
	farmer_name  text NOT NULL DEFAULT '',
	harvest_date timestamptz,
	expiry_date  timestamptz,
	quality      text NOT NULL DEFAULT '',
	batch_id     text NOT NULL,
	status       text NOT NULL DEFAULT 'available',
	version      bigint NOT NULL DEFAULT 0,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_inventory_items_hub ON inventory_items(hub_id);
CREATE INDEX IF NOT EXISTS ix_inventory_items_product ON inventory_items(lower(product_name));

CREATE TABLE IF NOT EXISTS stock_movements (
	id         uuid PRIMARY KEY,
	item_id    uuid NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
	delta      integer NOT NULL,
	reason     text NOT NULL,
	actor_id   text NOT NULL DEFAULT '',
	order_id   uuid,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_stock_movements_item ON stock_movements(item_id);

CREATE TABLE IF NOT EXISTS orders (
	id                 uuid PRIMARY KEY,
	hub_id             uuid NOT NULL REFERENCES hubs(id),
	customer_id        text NOT NULL,
	subtotal_paise     bigint NOT NULL,
	delivery_fee_paise bigint NOT NULL,
	total_paise        bigint NOT NULL,
	payment_status     text NOT NULL DEFAULT 'pending',
	payment_method     text NOT NULL DEFAULT '',
	status             text NOT NULL DEFAULT 'pending',
	delivery_address   text NOT NULL,
	notes              text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_orders_customer ON orders(customer_id);

CREATE TABLE IF NOT EXISTS order_items (
	id               uuid PRIMARY KEY,
	order_id         uuid NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	inventory_id     uuid NOT NULL,
	product_name     text NOT NULL,
	quantity         integer NOT NULL CHECK (quantity > 0),
	unit             text NOT NULL DEFAULT '',
	price_paise      bigint NOT NULL,
	line_total_paise bigint NOT NULL,
	farmer_id        text NOT NULL DEFAULT '',
	farmer_name      text NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS ix_order_items_order ON order_items(order_id);
`

// Migrate bootstraps the schema. Idempotent; runs at service start.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
