// Package repository holds the append-only stores for order metric records.
package repository

import (
	"context"
	"strings"

	"grocery-fleet/internal/domain"
)

// Store is an append-only sequence of metric records.
type Store interface {
	// Append durably writes one record. Failures are *domain.StoreWriteError.
	Append(ctx context.Context, e domain.MetricEvent) error
	// Records returns the stored records in append order, only those for
	// orderID when it is not empty.
	Records(ctx context.Context, orderID string) ([]domain.MetricEvent, error)
	// Ping fails when the store can no longer accept appends.
	Ping(ctx context.Context) error
	Close() error
}

// Open returns a PostgreSQL store for a postgres:// DSN and a CSV file store otherwise.
func Open(ctx context.Context, path string) (Store, error) {
	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		return OpenPostgres(ctx, path)
	}
	return OpenCSV(path)
}
