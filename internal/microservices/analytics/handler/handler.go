// Package handler serves the read side of the metric store over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grocery-fleet/internal/common/httpx"
	"grocery-fleet/internal/domain"
	"grocery-fleet/internal/microservices/analytics/service"
)

type Querier interface {
	Records(ctx context.Context, orderID string) ([]domain.MetricEvent, error)
	Summary(ctx context.Context) ([]service.StatusSummary, error)
}

type AnalyticsHandler struct {
	q Querier
}

func New(q Querier) *AnalyticsHandler { return &AnalyticsHandler{q: q} }

// Mount registers the analytics routes on r.
func (h *AnalyticsHandler) Mount(r chi.Router) {
	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Get("/orders/{order_id}", h.GetOrder)
		r.Get("/summary", h.GetSummary)
	})
}

func (h *AnalyticsHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "order_id")
	records, err := h.q.Records(r.Context(), id)
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if len(records) == 0 {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "no records for order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order_id": id, "records": records})
}

func (h *AnalyticsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.q.Summary(r.Context())
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"statuses": summary})
}
