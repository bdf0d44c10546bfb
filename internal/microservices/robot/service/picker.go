package service

import (
	"context"
	"time"

	"grocery-fleet/internal/domain"
)

// Picker performs the physical work for one matched item. A pick always runs
// to completion.
type Picker interface {
	Pick(ctx context.Context, item domain.LineItem)
}

// SimulatedPicker stands in for the arm by sleeping Duration per item.
type SimulatedPicker struct {
	Duration time.Duration
}

func (p SimulatedPicker) Pick(_ context.Context, _ domain.LineItem) {
	if p.Duration <= 0 {
		return
	}
	t := time.NewTimer(p.Duration)
	defer t.Stop()
	<-t.C
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context, item domain.LineItem)

func (f PickerFunc) Pick(ctx context.Context, item domain.LineItem) { f(ctx, item) }
