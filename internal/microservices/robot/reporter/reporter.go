// Package reporter delivers job status reports to the inventory authority.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"grocery-fleet/internal/connections/rabbitmq"
	"grocery-fleet/internal/domain"
)

// Reporter makes one ReportJobStatus call. Every failure is a *domain.TransportError.
type Reporter interface {
	Report(ctx context.Context, r domain.JobStatusReport) (domain.Ack, error)
}

// New picks the transport from addr's scheme: http(s):// posts JSON,
// amqp(s):// makes an RPC call to queue.
func New(addr, queue string) (Reporter, func(), error) {
	scheme, _, _ := strings.Cut(addr, "://")
	switch strings.ToLower(scheme) {
	case "http", "https":
		return NewHTTP(addr, &http.Client{}), func() {}, nil
	case "amqp", "amqps":
		c, err := rabbitmq.Dial(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial report channel: %w", err)
		}
		return NewAMQP(c, queue), c.Close, nil
	default:
		return nil, nil, fmt.Errorf("report address %q: unsupported transport %q", addr, scheme)
	}
}

// Health returns r's connection check. Reporters without a standing
// connection are always healthy.
func Health(r Reporter) func() error {
	if p, ok := r.(interface{ Ping() error }); ok {
		return p.Ping
	}
	return func() error { return nil }
}

// classify maps a low-level failure onto a TransportError kind.
func classify(op string, err error) *domain.TransportError {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return te
	}
	kind := domain.TransportUnavailable
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.TransportTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = domain.TransportConnectionRefused
	case errors.Is(err, rabbitmq.ErrNacked):
		kind = domain.TransportRejected
	}
	return &domain.TransportError{Kind: kind, Op: op, Err: err}
}

func rejected(op string, err error) *domain.TransportError {
	return &domain.TransportError{Kind: domain.TransportRejected, Op: op, Err: err}
}
