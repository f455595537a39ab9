// Package postgres stores service orders in PostgreSQL through a pgx pool.
// The schema is managed by goose with migrations embedded in the binary.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const upsertOrderSQL = `
INSERT INTO service_orders (
    order_number, order_date, order_status,
    engine_manufacturer, engine_description, vehicle_model,
    raw_defect_description, responsible_mechanic,
    parts_total, labor_total, grand_total, original_parts_value,
    calculation_verified
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (order_number) DO UPDATE SET
    order_date = EXCLUDED.order_date,
    order_status = EXCLUDED.order_status,
    engine_manufacturer = EXCLUDED.engine_manufacturer,
    engine_description = EXCLUDED.engine_description,
    vehicle_model = EXCLUDED.vehicle_model,
    raw_defect_description = EXCLUDED.raw_defect_description,
    responsible_mechanic = EXCLUDED.responsible_mechanic,
    parts_total = EXCLUDED.parts_total,
    labor_total = EXCLUDED.labor_total,
    grand_total = EXCLUDED.grand_total,
    original_parts_value = EXCLUDED.original_parts_value,
    calculation_verified = EXCLUDED.calculation_verified,
    updated_at = now()`

const selectOrdersSQL = `
SELECT order_number, order_date, order_status,
       engine_manufacturer, engine_description, vehicle_model,
       raw_defect_description, responsible_mechanic,
       parts_total::text, labor_total::text, grand_total::text, original_parts_value::text,
       calculation_verified
FROM service_orders
ORDER BY order_date DESC, order_number
LIMIT $1`

// DB is a PostgreSQL backed store.Store.
type DB struct {
	Pool *pgxpool.Pool
}

var _ store.Store = (*DB)(nil)

// Connect opens a pool and checks it with a ping.
func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close releases the pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// Migrate applies the embedded goose migrations.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Clear deletes every service order.
func (db *DB) Clear(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM service_orders`)
	return err
}

// UpsertOrders sends the records as one pgx batch inside a transaction.
func (db *DB) UpsertOrders(ctx context.Context, records []types.NormalizedRecord) (n int64, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertOrderSQL,
			r.OrderNumber, r.OrderDate, r.Status,
			r.EngineManufacturer, r.EngineDescription, r.VehicleModel,
			r.DefectDescription, r.ResponsibleMechanic,
			r.PartsTotal, r.LaborTotal, r.GrandTotal, r.OriginalPartsValue,
			r.CalculationVerified,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, r := range records {
		tag, execErr := br.Exec()
		if execErr != nil {
			_ = br.Close()
			return 0, fmt.Errorf("order %s: %w", r.OrderNumber, execErr)
		}
		n += tag.RowsAffected()
	}
	if err = br.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

// CountOrders returns the number of stored orders.
func (db *DB) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_orders`).Scan(&n)
	return n, err
}

// SampleOrders returns up to n orders, most recent first.
func (db *DB) SampleOrders(ctx context.Context, n int) ([]types.NormalizedRecord, error) {
	rows, err := db.Pool.Query(ctx, selectOrdersSQL, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.NormalizedRecord
	for rows.Next() {
		var (
			r                         types.NormalizedRecord
			parts, labor, grand, orig string
		)
		if err := rows.Scan(
			&r.OrderNumber, &r.OrderDate, &r.Status,
			&r.EngineManufacturer, &r.EngineDescription, &r.VehicleModel,
			&r.DefectDescription, &r.ResponsibleMechanic,
			&parts, &labor, &grand, &orig,
			&r.CalculationVerified,
		); err != nil {
			return nil, err
		}
		if err := parseMoney(&r, parts, labor, grand, orig); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LogFileProcessing inserts a file_processing_logs row.
func (db *DB) LogFileProcessing(ctx context.Context, entry store.FileLog) error {
	details, err := json.Marshal(entry.ErrorDetails)
	if err != nil {
		return fmt.Errorf("failed to encode error details: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO file_processing_logs
            (run_id, file_name, processed_at, total_rows, valid_rows, rejected_rows, inserted_rows, status, error_details)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
		entry.RunID, entry.FileName, entry.ProcessedAt,
		entry.TotalRows, entry.ValidRows, entry.RejectedRows, entry.InsertedRows,
		entry.Status, string(details),
	)
	return err
}

func parseMoney(r *types.NormalizedRecord, parts, labor, grand, orig string) error {
	var err error
	if r.PartsTotal, err = decimal.NewFromString(parts); err != nil {
		return err
	}
	if r.LaborTotal, err = decimal.NewFromString(labor); err != nil {
		return err
	}
	if r.GrandTotal, err = decimal.NewFromString(grand); err != nil {
		return err
	}
	r.OriginalPartsValue, err = decimal.NewFromString(orig)
	return err
}
