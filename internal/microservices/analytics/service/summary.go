package service

import (
	"context"
	"math"
	"slices"
	"strings"
)

// StatusSummary is the latency distribution of one report status.
type StatusSummary struct {
	Status string  `json:"status"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_seconds"`
	P50    float64 `json:"p50_seconds"`
	P95    float64 `json:"p95_seconds"`
	Max    float64 `json:"max_seconds"`
}

// Summary groups every stored record by status, sorted by status name.
func (c *Collector) Summary(ctx context.Context) ([]StatusSummary, error) {
	records, err := c.store.Records(ctx, "")
	if err != nil {
		return nil, err
	}
	byStatus := map[string][]float64{}
	for _, r := range records {
		byStatus[r.Status] = append(byStatus[r.Status], r.DurationSeconds)
	}

	out := make([]StatusSummary, 0, len(byStatus))
	for status, ds := range byStatus {
		slices.Sort(ds)
		var sum float64
		for _, d := range ds {
			sum += d
		}
		out = append(out, StatusSummary{
			Status: status,
			Count:  len(ds),
			Mean:   sum / float64(len(ds)),
			P50:    percentile(ds, 0.50),
			P95:    percentile(ds, 0.95),
			Max:    ds[len(ds)-1],
		})
	}
	slices.SortFunc(out, func(a, b StatusSummary) int { return strings.Compare(a.Status, b.Status) })
	return out, nil
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p * float64(len(sorted))))
	return sorted[max(rank, 1)-1]
}
