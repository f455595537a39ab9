// =============================================================================
// Warranty Orders - Relational Store
// =============================================================================
//
// This package defines the persistence contract for accepted service orders
// and the Loader that drives it. Drivers live in subpackages:
//   - store/postgres: pgx connection pool, goose migrations
//   - store/sqlite:   go-sqlite3, versioned in-code migrations
//
// TABLES:
//   service_orders        one row per order_number (upserted)
//   file_processing_logs  one row per processed input file
//
// =============================================================================

package store

import (
	"context"
	"time"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// File processing statuses.
const (
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// Store persists normalized records.
type Store interface {
	// Migrate brings the schema to the latest version.
	Migrate(ctx context.Context) error

	// Clear deletes every service order.
	Clear(ctx context.Context) error

	// UpsertOrders inserts records, replacing rows with the same order
	// number, in one transaction. It returns the number of rows written.
	UpsertOrders(ctx context.Context, records []types.NormalizedRecord) (int64, error)

	// CountOrders returns the number of stored service orders.
	CountOrders(ctx context.Context) (int64, error)

	// SampleOrders returns up to n orders, most recent order date first.
	SampleOrders(ctx context.Context, n int) ([]types.NormalizedRecord, error)

	// LogFileProcessing records the outcome of one input file.
	LogFileProcessing(ctx context.Context, entry FileLog) error

	Close() error
}

// FileLog is one row of file_processing_logs.
type FileLog struct {
	RunID        string
	FileName     string
	ProcessedAt  time.Time
	TotalRows    int
	ValidRows    int
	RejectedRows int
	InsertedRows int64
	Status       string

	// ErrorDetails is stored as JSON (rejection counts per cause, load
	// errors).
	ErrorDetails map[string]any
}
