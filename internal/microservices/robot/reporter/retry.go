package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"grocery-fleet/internal/domain"
)

// RetryPolicy bounds the attempts made for one report.
type RetryPolicy struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int           // total, including the first
	Initial     time.Duration
	Max         time.Duration
}

// Retrying retries every TransportError with exponential backoff.
type Retrying struct {
	next   Reporter
	policy RetryPolicy
	// OnAttempt, when set, sees every attempt's outcome: "ok" or the error kind.
	OnAttempt func(attempt int, outcome string, err error)
}

func NewRetrying(next Reporter, p RetryPolicy) *Retrying {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return &Retrying{next: next, policy: p}
}

// Report returns the first successful Ack, or the last attempt's TransportError.
func (r *Retrying) Report(ctx context.Context, rep domain.JobStatusReport) (domain.Ack, error) {
	b := backoff.NewExponentialBackOff()
	if r.policy.Initial > 0 {
		b.InitialInterval = r.policy.Initial
	}
	if r.policy.Max > 0 {
		b.MaxInterval = r.policy.Max
	}

	attempt := 0
	op := func() (domain.Ack, error) {
		attempt++
		actx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}

		ack, err := r.next.Report(actx, rep)
		if err != nil {
			err = classify("report_job_status", err)
		}
		if r.OnAttempt != nil {
			r.OnAttempt(attempt, outcome(err), err)
		}
		return ack, err
	}

	ack, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return domain.Ack{}, classify("report_job_status", err)
	}
	return ack, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		return string(te.Kind)
	}
	return string(domain.TransportUnavailable)
}
