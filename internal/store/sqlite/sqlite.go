// Package sqlite stores service orders in a local SQLite file. It backs
// single-machine runs and the tests of the components above the store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

const dateLayout = "2006-01-02"

// Storage is a SQLite backed store.Store.
type Storage struct {
	db     *sql.DB
	dbPath string
}

var _ store.Store = (*Storage)(nil)

// Open opens (creating when needed) the database file at dbPath.
func Open(dbPath string) (*Storage, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("sqlite path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{db: db, dbPath: dbPath}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Clear deletes every service order.
func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM service_orders`)
	return err
}

// UpsertOrders writes records in one transaction.
func (s *Storage) UpsertOrders(ctx context.Context, records []types.NormalizedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO service_orders (
			order_number, order_date, order_status,
			engine_manufacturer, engine_description, vehicle_model,
			raw_defect_description, responsible_mechanic,
			parts_total, labor_total, grand_total, original_parts_value,
			calculation_verified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_number) DO UPDATE SET
			order_date = excluded.order_date,
			order_status = excluded.order_status,
			engine_manufacturer = excluded.engine_manufacturer,
			engine_description = excluded.engine_description,
			vehicle_model = excluded.vehicle_model,
			raw_defect_description = excluded.raw_defect_description,
			responsible_mechanic = excluded.responsible_mechanic,
			parts_total = excluded.parts_total,
			labor_total = excluded.labor_total,
			grand_total = excluded.grand_total,
			original_parts_value = excluded.original_parts_value,
			calculation_verified = excluded.calculation_verified,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.OrderNumber, r.OrderDate.Format(dateLayout), r.Status,
			r.EngineManufacturer, r.EngineDescription, r.VehicleModel,
			r.DefectDescription, r.ResponsibleMechanic,
			r.PartsTotal.StringFixed(2), r.LaborTotal.StringFixed(2),
			r.GrandTotal.StringFixed(2), r.OriginalPartsValue.StringFixed(2),
			r.CalculationVerified,
		)
		if err != nil {
			return 0, fmt.Errorf("order %s: %w", r.OrderNumber, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}

// CountOrders returns the number of stored orders.
func (s *Storage) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_orders`).Scan(&n)
	return n, err
}

// SampleOrders returns up to n orders, most recent first.
func (s *Storage) SampleOrders(ctx context.Context, n int) ([]types.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_number, order_date, order_status,
		       engine_manufacturer, engine_description, vehicle_model,
		       raw_defect_description, responsible_mechanic,
		       parts_total, labor_total, grand_total, original_parts_value,
		       calculation_verified
		FROM service_orders
		ORDER BY order_date DESC, order_number
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []types.NormalizedRecord
	for rows.Next() {
		var (
			r                         types.NormalizedRecord
			date                      string
			parts, labor, grand, orig string
		)
		if err := rows.Scan(
			&r.OrderNumber, &date, &r.Status,
			&r.EngineManufacturer, &r.EngineDescription, &r.VehicleModel,
			&r.DefectDescription, &r.ResponsibleMechanic,
			&parts, &labor, &grand, &orig,
			&r.CalculationVerified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if r.OrderDate, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("order %s: bad stored date %q", r.OrderNumber, date)
		}
		for _, m := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&r.PartsTotal, parts},
			{&r.LaborTotal, labor},
			{&r.GrandTotal, grand},
			{&r.OriginalPartsValue, orig},
		} {
			if *m.dst, err = decimal.NewFromString(m.src); err != nil {
				return nil, fmt.Errorf("order %s: bad stored amount %q", r.OrderNumber, m.src)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LogFileProcessing inserts a file_processing_logs row.
func (s *Storage) LogFileProcessing(ctx context.Context, entry store.FileLog) error {
	details, err := json.Marshal(entry.ErrorDetails)
	if err != nil {
		return fmt.Errorf("failed to encode error details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO file_processing_logs
			(run_id, file_name, processed_at, total_rows, valid_rows, rejected_rows, inserted_rows, status, error_details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.FileName, entry.ProcessedAt.UTC().Format(time.RFC3339),
		entry.TotalRows, entry.ValidRows, entry.RejectedRows, entry.InsertedRows,
		entry.Status, string(details),
	)
	return err
}
