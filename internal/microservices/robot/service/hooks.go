package service

import (
	"context"
	"time"

	"grocery-fleet/internal/domain"
)

// Hooks observe the order lifecycle. Any field may be nil.
type Hooks struct {
	// OnOrderStart fires after a broadcast is decoded, before filtering.
	OnOrderStart func(ctx context.Context, b domain.OrderBroadcast)
	// OnOrderDone fires once the report was acknowledged.
	OnOrderDone func(ctx context.Context, r domain.JobStatusReport, elapsed time.Duration)
	// OnReportFailed fires when every report attempt failed. The order was
	// still picked; only its status is lost.
	OnReportFailed func(ctx context.Context, r domain.JobStatusReport, err error)
}

// Merge runs h first and then other for every hook.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnOrderStart: func(ctx context.Context, b domain.OrderBroadcast) {
			if h.OnOrderStart != nil {
				h.OnOrderStart(ctx, b)
			}
			if other.OnOrderStart != nil {
				other.OnOrderStart(ctx, b)
			}
		},
		OnOrderDone: func(ctx context.Context, r domain.JobStatusReport, elapsed time.Duration) {
			if h.OnOrderDone != nil {
				h.OnOrderDone(ctx, r, elapsed)
			}
			if other.OnOrderDone != nil {
				other.OnOrderDone(ctx, r, elapsed)
			}
		},
		OnReportFailed: func(ctx context.Context, r domain.JobStatusReport, err error) {
			if h.OnReportFailed != nil {
				h.OnReportFailed(ctx, r, err)
			}
			if other.OnReportFailed != nil {
				other.OnReportFailed(ctx, r, err)
			}
		},
	}
}
