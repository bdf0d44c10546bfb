package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-fleet/internal/domain"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
}

func event(i int) domain.MetricEvent {
	return domain.MetricEvent{
		OrderID:         fmt.Sprintf("O%d", i),
		Status:          "SUCCESS",
		DurationSeconds: float64(i) + 0.25,
		Timestamp:       1_700_000_000 + int64(i),
	}
}

func TestCSVStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency_data.csv")
	ctx := context.Background()

	s, err := OpenCSV(path)
	require.NoError(t, err)
	for i := range 3 {
		require.NoError(t, s.Append(ctx, event(i)))
	}
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 4)
	assert.Equal(t, "order_id,status,duration_seconds,timestamp", lines[0])
	assert.Equal(t, "O0,SUCCESS,0.25,1700000000", lines[1])
	assert.Equal(t, "O2,SUCCESS,2.25,1700000002", lines[3])

	// Reopen and keep appending: no second header.
	s, err = OpenCSV(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Append(ctx, event(3)))

	lines = readLines(t, path)
	require.Len(t, lines, 5)
	assert.Equal(t, 1, strings.Count(strings.Join(lines, "\n"), "order_id,status"))

	got, err := s.Records(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, event(i), e)
	}
}

func TestCSVStoreQuotesAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metrics.csv")
	ctx := context.Background()
	s, err := OpenCSV(path)
	require.NoError(t, err)
	defer s.Close()

	odd := domain.MetricEvent{OrderID: `O,"1"`, Status: "NO_OP", DurationSeconds: 1.5, Timestamp: 10}
	require.NoError(t, s.Append(ctx, odd))
	require.NoError(t, s.Append(ctx, event(7)))

	assert.Equal(t, `"O,""1""",NO_OP,1.5,10`, readLines(t, path)[1])

	got, err := s.Records(ctx, `O,"1"`)
	require.NoError(t, err)
	assert.Equal(t, []domain.MetricEvent{odd}, got)
}

func TestCSVStoreConcurrentWritersKeepLinesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.csv")
	ctx := context.Background()

	// Two stores on one file stand in for two collector processes.
	a, err := OpenCSV(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenCSV(path)
	require.NoError(t, err)
	defer b.Close()

	var wg sync.WaitGroup
	for w, s := range []*CSVStore{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				assert.NoError(t, s.Append(ctx, event(w*100+i)))
			}
		}()
	}
	wg.Wait()

	lines := readLines(t, path)
	require.Len(t, lines, 101)
	assert.Equal(t, "order_id,status,duration_seconds,timestamp", lines[0])
	for _, l := range lines[1:] {
		assert.Len(t, strings.Split(l, ","), 4, "torn line %q", l)
	}
}

func TestCSVStoreAppendAfterCloseIsStoreWriteError(t *testing.T) {
	s, err := OpenCSV(filepath.Join(t.TempDir(), "m.csv"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Append(context.Background(), event(1))
	assert.ErrorIs(t, err, domain.ErrStoreWrite)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestOpenCSVOnDirectoryFails(t *testing.T) {
	_, err := OpenCSV(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrStoreWrite)
}

func TestOpenPicksBackend(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "m.csv"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &CSVStore{}, s)
}

func TestCSVStorePing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency_data.csv")
	s, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, os.Remove(path))
	err = s.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreWrite)

	require.NoError(t, s.Close())
	s, err = OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), os.ErrClosed)
}
