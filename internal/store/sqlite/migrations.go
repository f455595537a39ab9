package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ExpectedSchemaVersion is the schema version this build writes.
const ExpectedSchemaVersion = 2

// Migration is one schema step, tracked with PRAGMA user_version.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Service orders",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS service_orders (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					order_number TEXT NOT NULL UNIQUE,
					order_date TEXT NOT NULL,
					order_status TEXT NOT NULL,
					engine_manufacturer TEXT,
					engine_description TEXT,
					vehicle_model TEXT,
					raw_defect_description TEXT,
					responsible_mechanic TEXT,
					parts_total TEXT NOT NULL DEFAULT '0.00',
					labor_total TEXT NOT NULL DEFAULT '0.00',
					grand_total TEXT NOT NULL DEFAULT '0.00',
					original_parts_value TEXT NOT NULL DEFAULT '0.00',
					calculation_verified BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_service_orders_order_date ON service_orders(order_date)`,
				`CREATE INDEX IF NOT EXISTS idx_service_orders_status ON service_orders(order_status)`,
				`CREATE INDEX IF NOT EXISTS idx_service_orders_manufacturer ON service_orders(engine_manufacturer)`,
			)
		},
	},
	{
		Version:     2,
		Description: "File processing logs",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS file_processing_logs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					file_name TEXT NOT NULL,
					processed_at DATETIME NOT NULL,
					total_rows INTEGER NOT NULL,
					valid_rows INTEGER NOT NULL,
					rejected_rows INTEGER NOT NULL,
					inserted_rows INTEGER NOT NULL,
					status TEXT NOT NULL,
					error_details TEXT
				)`,
				`CREATE INDEX IF NOT EXISTS idx_file_processing_logs_run ON file_processing_logs(run_id)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies pending migrations, each in its own transaction.
func (s *Storage) Migrate(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	final, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, final)
	}
	return nil
}

// SchemaVersion reads PRAGMA user_version.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
