package reporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"grocery-fleet/internal/common/codec"
	"grocery-fleet/internal/domain"
)

const ReportPath = "/v1/inventory/report-job-status"

// maxAckBody bounds how much of a response is read.
const maxAckBody = 64 << 10

type HTTPReporter struct {
	url    string
	client *http.Client
}

func NewHTTP(base string, client *http.Client) *HTTPReporter {
	return &HTTPReporter{url: strings.TrimSuffix(base, "/") + ReportPath, client: client}
}

func (h *HTTPReporter) Report(ctx context.Context, r domain.JobStatusReport) (domain.Ack, error) {
	const op = "report_job_status"

	body, err := codec.EncodeReport(r)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("encode report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return domain.Ack{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", codec.ContentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.Ack{}, classify(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBody))
	if err != nil {
		return domain.Ack{}, classify(op, err)
	}
	switch {
	case resp.StatusCode >= 500:
		return domain.Ack{}, &domain.TransportError{
			Kind: domain.TransportUnavailable, Op: op,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(payload)),
		}
	case resp.StatusCode >= 300:
		return domain.Ack{}, rejected(op, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(payload)))
	}

	ack, err := codec.DecodeAck(payload)
	if err != nil {
		return domain.Ack{}, rejected(op, err)
	}
	if !ack.Success {
		return ack, rejected(op, fmt.Errorf("authority declined: %s", ack.Message))
	}
	return ack, nil
}
