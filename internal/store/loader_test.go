package store

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// fakeStore keeps orders in a map and fails selected batch calls.
type fakeStore struct {
	orders   map[string]types.NormalizedRecord
	calls    int
	failCall map[int]bool
	clearErr error
	logs     []FileLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]types.NormalizedRecord), failCall: make(map[int]bool)}
}

func (f *fakeStore) Migrate(context.Context) error { return nil }

func (f *fakeStore) Clear(context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.orders = make(map[string]types.NormalizedRecord)
	return nil
}

func (f *fakeStore) UpsertOrders(_ context.Context, records []types.NormalizedRecord) (int64, error) {
	f.calls++
	if f.failCall[f.calls] {
		return 0, errors.New("connection reset")
	}
	for _, r := range records {
		f.orders[r.OrderNumber] = r
	}
	return int64(len(records)), nil
}

func (f *fakeStore) CountOrders(context.Context) (int64, error) {
	return int64(len(f.orders)), nil
}

func (f *fakeStore) SampleOrders(_ context.Context, n int) ([]types.NormalizedRecord, error) {
	out := make([]types.NormalizedRecord, 0, len(f.orders))
	for _, r := range f.orders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeStore) LogFileProcessing(_ context.Context, entry FileLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func makeRecords(numbers ...string) []types.NormalizedRecord {
	out := make([]types.NormalizedRecord, len(numbers))
	for i, n := range numbers {
		out[i] = types.NormalizedRecord{
			OrderNumber: n,
			OrderDate:   time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
			Status:      "G",
		}
	}
	return out
}

func TestLoader_LoadInBatches(t *testing.T) {
	fs := newFakeStore()
	loader := NewLoader(fs, 2, false, nil)

	result, err := loader.Load(context.Background(), makeRecords("1", "2", "3", "4", "5"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 3, fs.calls)
	assert.Equal(t, int64(5), result.Inserted)
	assert.Zero(t, result.FailedBatches)

	v, err := loader.Verify(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, &Verification{ExpectedCount: 5, ActualCount: 5, Match: true}, v)
}

func TestLoader_FailedBatchIsSkipped(t *testing.T) {
	fs := newFakeStore()
	fs.failCall[2] = true
	loader := NewLoader(fs, 2, false, nil)

	result, err := loader.Load(context.Background(), makeRecords("1", "2", "3", "4", "5"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedBatches)
	assert.Equal(t, int64(3), result.Inserted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "records 3-4")

	v, err := loader.Verify(context.Background(), result)
	require.NoError(t, err)
	assert.False(t, v.Match)
	assert.Equal(t, int64(-2), v.Difference)
}

func TestLoader_ClearExisting(t *testing.T) {
	fs := newFakeStore()
	fs.orders["old"] = types.NormalizedRecord{OrderNumber: "old"}

	loader := NewLoader(fs, 0, true, nil)
	result, err := loader.Load(context.Background(), makeRecords("1", "2", "2"))
	require.NoError(t, err)
	assert.True(t, result.Cleared)
	assert.Equal(t, 2, result.Distinct)

	v, err := loader.Verify(context.Background(), result)
	require.NoError(t, err)
	assert.True(t, v.Match)
	assert.Equal(t, int64(2), v.ActualCount)
}

func TestLoader_WithoutClearAllowsExistingRows(t *testing.T) {
	fs := newFakeStore()
	fs.orders["old"] = types.NormalizedRecord{OrderNumber: "old"}

	loader := NewLoader(fs, 10, false, nil)
	result, err := loader.Load(context.Background(), makeRecords("1"))
	require.NoError(t, err)

	v, err := loader.Verify(context.Background(), result)
	require.NoError(t, err)
	assert.True(t, v.Match)
	assert.Equal(t, int64(1), v.Difference)
}

func TestLoader_ClearFailureAborts(t *testing.T) {
	fs := newFakeStore()
	fs.clearErr = errors.New("permission denied")

	_, err := NewLoader(fs, 10, true, nil).Load(context.Background(), makeRecords("1"))
	assert.ErrorContains(t, err, "failed to clear existing orders")
	assert.Zero(t, fs.calls)
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(newFakeStore(), 10, false, nil).Load(ctx, makeRecords("1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_SampleAndLog(t *testing.T) {
	fs := newFakeStore()
	loader := NewLoader(fs, 10, false, nil)
	_, err := loader.Load(context.Background(), makeRecords("b", "a", "c"))
	require.NoError(t, err)

	sample, err := loader.Sample(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, sample, 2)
	assert.Equal(t, "a", sample[0].OrderNumber)

	require.NoError(t, loader.LogFile(context.Background(), FileLog{FileName: "orders.xlsx", Status: StatusCompleted}))
	require.Len(t, fs.logs, 1)
	assert.Same(t, Store(fs), loader.Store())
}
