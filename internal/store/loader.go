package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/logging"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// DefaultBatchSize is the number of records per upsert transaction.
const DefaultBatchSize = 1000

// LoadResult describes one Load call.
type LoadResult struct {
	Records       int      `json:"records"`
	Distinct      int      `json:"distinct_orders"`
	Inserted      int64    `json:"inserted"`
	Batches       int      `json:"batches"`
	FailedBatches int      `json:"failed_batches"`
	Cleared       bool     `json:"cleared"`
	Errors        []string `json:"errors,omitempty"`
}

// Verification compares the stored order count with the expected one.
type Verification struct {
	ExpectedCount int64 `json:"expected_count"`
	ActualCount   int64 `json:"actual_count"`
	Match         bool  `json:"match"`
	Difference    int64 `json:"difference"`
}

// Loader writes records to a Store in fixed-size batches.
type Loader struct {
	store         Store
	batchSize     int
	clearExisting bool
	logger        *zap.Logger
}

// NewLoader creates a loader. A non-positive batchSize uses
// DefaultBatchSize.
func NewLoader(s Store, batchSize int, clearExisting bool, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		store:         s,
		batchSize:     batchSize,
		clearExisting: clearExisting,
		logger:        logging.OrNop(logger).Named("loader"),
	}
}

// Store returns the underlying store.
func (l *Loader) Store() Store {
	return l.store
}

// Load upserts records batch by batch. A failing batch is logged, counted
// and skipped; the remaining batches are still attempted. Only a failed
// Clear or a cancelled context aborts the load.
func (l *Loader) Load(ctx context.Context, records []types.NormalizedRecord) (*LoadResult, error) {
	result := &LoadResult{
		Records:  len(records),
		Distinct: distinctOrders(records),
	}

	if l.clearExisting {
		if err := l.store.Clear(ctx); err != nil {
			return result, fmt.Errorf("failed to clear existing orders: %w", err)
		}
		result.Cleared = true
		l.logger.Info("cleared existing orders")
	}

	for start := 0; start < len(records); start += l.batchSize {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("load abandoned at record %d: %w", start, err)
		}

		end := start + l.batchSize
		if end > len(records) {
			end = len(records)
		}
		result.Batches++

		n, err := l.store.UpsertOrders(ctx, records[start:end])
		if err != nil {
			result.FailedBatches++
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d (records %d-%d): %v", result.Batches, start+1, end, err))
			l.logger.Error("batch failed",
				zap.Int("batch", result.Batches),
				zap.Int("size", end-start),
				zap.Error(err))
			continue
		}
		result.Inserted += n
		l.logger.Debug("batch loaded", zap.Int("batch", result.Batches), zap.Int64("rows", n))
	}

	l.logger.Info("load finished",
		zap.Int64("inserted", result.Inserted),
		zap.Int("batches", result.Batches),
		zap.Int("failed_batches", result.FailedBatches))

	return result, nil
}

// Verify counts the stored orders and compares them with the load. After a
// clearing load the count must equal the distinct order numbers loaded;
// otherwise the table may hold earlier orders, so it must be at least that.
func (l *Loader) Verify(ctx context.Context, result *LoadResult) (*Verification, error) {
	actual, err := l.store.CountOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	expected := int64(result.Distinct)
	v := &Verification{
		ExpectedCount: expected,
		ActualCount:   actual,
		Difference:    actual - expected,
	}
	if result.FailedBatches == 0 {
		if result.Cleared {
			v.Match = actual == expected
		} else {
			v.Match = actual >= expected
		}
	}
	return v, nil
}

// Sample returns up to n stored orders.
func (l *Loader) Sample(ctx context.Context, n int) ([]types.NormalizedRecord, error) {
	return l.store.SampleOrders(ctx, n)
}

// LogFile records a file processing entry.
func (l *Loader) LogFile(ctx context.Context, entry FileLog) error {
	return l.store.LogFileProcessing(ctx, entry)
}

func distinctOrders(records []types.NormalizedRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.OrderNumber] = struct{}{}
	}
	return len(seen)
}
