package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"snatcher/internal/model"
)

// Repository defines the standard interface for database operations.
// The compare-and-set operations are the only synchronization point shared
// by concurrent evaluation tasks: both mutate an item only while it is
// still Active, in a single statement.
type Repository interface {
	ListActive(ctx context.Context) ([]model.TrackedItem, error)
	Get(ctx context.Context, id int64) (model.TrackedItem, error)
	GetOwner(ctx context.Context, id int64) (model.Owner, error)
	// CompareAndSetPrice records a new observed price; returns false when
	// the item is no longer Active.
	CompareAndSetPrice(ctx context.Context, id int64, price model.CanonicalPrice) (bool, error)
	// CompareAndSetSnatched performs the Active->Snatched transition;
	// returns false when another caller already transitioned the item.
	CompareAndSetSnatched(ctx context.Context, id int64, snatchedPrice float64) (bool, error)
	CreateSnatchEvent(ctx context.Context, ev model.SnatchEvent) error
}

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// Migrate creates the schema if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS owners (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS tracked_items (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES owners(id),
		url TEXT NOT NULL,
		target_price NUMERIC(12, 2) NOT NULL,
		current_price NUMERIC(12, 2),
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS snatch_events (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL REFERENCES tracked_items(id),
		owner_id BIGINT NOT NULL REFERENCES owners(id),
		url TEXT NOT NULL,
		initial_price NUMERIC(12, 2) NOT NULL,
		target_price NUMERIC(12, 2) NOT NULL,
		snatched_price NUMERIC(12, 2) NOT NULL,
		date_tracked TIMESTAMPTZ NOT NULL,
		date_snatched TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`
	if _, err := r.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]model.TrackedItem, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, owner_id, url, target_price, current_price, status, created_at
		FROM tracked_items
		WHERE status = 'active'
		ORDER BY owner_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	defer rows.Close()

	var items []model.TrackedItem
	for rows.Next() {
		var it model.TrackedItem
		if err := rows.Scan(&it.ID, &it.OwnerID, &it.URL, &it.TargetPrice,
			&it.CurrentPrice, &it.Status, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracked item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (model.TrackedItem, error) {
	var it model.TrackedItem
	err := r.Pool.QueryRow(ctx, `
		SELECT id, owner_id, url, target_price, current_price, status, created_at
		FROM tracked_items
		WHERE id = $1`, id).
		Scan(&it.ID, &it.OwnerID, &it.URL, &it.TargetPrice,
			&it.CurrentPrice, &it.Status, &it.CreatedAt)
	if err != nil {
		return model.TrackedItem{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return it, nil
}

func (r *PostgresRepository) GetOwner(ctx context.Context, id int64) (model.Owner, error) {
	var o model.Owner
	err := r.Pool.QueryRow(ctx, `SELECT id, email FROM owners WHERE id = $1`, id).
		Scan(&o.ID, &o.Email)
	if err != nil {
		return model.Owner{}, fmt.Errorf("get owner %d: %w", id, err)
	}
	return o, nil
}

func (r *PostgresRepository) CompareAndSetPrice(ctx context.Context, id int64, price model.CanonicalPrice) (bool, error) {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE tracked_items
		SET current_price = $2
		WHERE id = $1 AND status = 'active'`, id, price.BaseAmount)
	if err != nil {
		return false, fmt.Errorf("set price for item %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) CompareAndSetSnatched(ctx context.Context, id int64, snatchedPrice float64) (bool, error) {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE tracked_items
		SET status = 'snatched', current_price = $2
		WHERE id = $1 AND status = 'active'`, id, snatchedPrice)
	if err != nil {
		return false, fmt.Errorf("snatch item %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) CreateSnatchEvent(ctx context.Context, ev model.SnatchEvent) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO snatch_events
			(item_id, owner_id, url, initial_price, target_price, snatched_price, date_tracked, date_snatched)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ItemID, ev.OwnerID, ev.URL, ev.InitialPrice, ev.TargetPrice,
		ev.SnatchedPrice, ev.DateTracked, ev.DateSnatched)
	if err != nil {
		return fmt.Errorf("create snatch event for item %d: %w", ev.ItemID, err)
	}
	return nil
}
