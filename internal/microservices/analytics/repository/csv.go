package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"grocery-fleet/internal/domain"
)

const (
	lockTimeout = 10 * time.Second
	lockRetry   = 5 * time.Millisecond
)

// CSVStore appends records to a CSV file whose first line is domain.MetricHeader.
// Appends are serialised in-process by a mutex and across processes by an
// advisory lock on "<path>.lock", and each is fsynced before returning.
type CSVStore struct {
	path string

	mu   sync.Mutex
	f    *os.File
	lock *flock.Flock
}

func OpenCSV(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &domain.StoreWriteError{Path: path, Err: err}
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &domain.StoreWriteError{Path: path, Err: err}
	}
	return &CSVStore{path: path, f: f, lock: flock.New(path + ".lock")}, nil
}

func (s *CSVStore) Append(ctx context.Context, e domain.MetricEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return &domain.StoreWriteError{Path: s.path, Err: os.ErrClosed}
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lctx, lockRetry)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("file lock not acquired")
		}
		return &domain.StoreWriteError{Path: s.path, Err: fmt.Errorf("lock: %w", err)}
	}
	defer func() { _ = s.lock.Unlock() }()

	info, err := s.f.Stat()
	if err != nil {
		return &domain.StoreWriteError{Path: s.path, Err: err}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		_ = w.Write(domain.MetricHeader)
	}
	_ = w.Write(toRow(e))
	w.Flush()
	if err := w.Error(); err != nil {
		return &domain.StoreWriteError{Path: s.path, Err: err}
	}

	// One write per append keeps a record on a single line even if another
	// writer ignores the lock.
	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return &domain.StoreWriteError{Path: s.path, Err: err}
	}
	if err := s.f.Sync(); err != nil {
		return &domain.StoreWriteError{Path: s.path, Err: err}
	}
	return nil
}

func (s *CSVStore) Records(_ context.Context, orderID string) ([]domain.MetricEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(domain.MetricHeader)
	var out []domain.MetricEvent
	for line := 1; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		if line == 1 && slices.Equal(row, domain.MetricHeader) {
			continue
		}
		e, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		if orderID == "" || e.OrderID == orderID {
			out = append(out, e)
		}
	}
}

// Ping fails once the store is closed or the file at path is no longer the
// one being appended to, for example after it was removed or rotated away.
func (s *CSVStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return &domain.StoreWriteError{Path: s.path, Err: os.ErrClosed}
	}
	open, err := s.f.Stat()
	if err != nil {
		return &domain.StoreWriteError{Path: s.path, Err: err}
	}
	onDisk, err := os.Stat(s.path)
	if err != nil {
		return &domain.StoreWriteError{Path: s.path, Err: err}
	}
	if !os.SameFile(open, onDisk) {
		return &domain.StoreWriteError{Path: s.path, Err: errors.New("file replaced since open")}
	}
	return nil
}

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func toRow(e domain.MetricEvent) []string {
	return []string{
		e.OrderID,
		e.Status,
		strconv.FormatFloat(e.DurationSeconds, 'f', -1, 64),
		strconv.FormatInt(e.Timestamp, 10),
	}
}

func fromRow(row []string) (domain.MetricEvent, error) {
	d, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return domain.MetricEvent{}, fmt.Errorf("duration_seconds: %w", err)
	}
	ts, err := strconv.ParseInt(row[3], 10, 64)
	if err != nil {
		return domain.MetricEvent{}, fmt.Errorf("timestamp: %w", err)
	}
	return domain.MetricEvent{OrderID: row[0], Status: row[1], DurationSeconds: d, Timestamp: ts}, nil
}
