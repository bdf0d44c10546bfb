package reporter

import (
	"context"
	"fmt"

	"grocery-fleet/internal/common/codec"
	"grocery-fleet/internal/domain"
)

// Caller is the request/reply half of the AMQP client.
type Caller interface {
	Call(ctx context.Context, queue string, body []byte, contentType string) ([]byte, error)
	Ping() error
}

// AMQPReporter sends each report as an RPC request on queue and waits for the Ack reply.
type AMQPReporter struct {
	caller Caller
	queue  string
}

func NewAMQP(c Caller, queue string) *AMQPReporter {
	return &AMQPReporter{caller: c, queue: queue}
}

// Ping fails while the connection to the broker is down.
func (a *AMQPReporter) Ping() error {
	if err := a.caller.Ping(); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (a *AMQPReporter) Report(ctx context.Context, r domain.JobStatusReport) (domain.Ack, error) {
	const op = "report_job_status"

	body, err := codec.EncodeReport(r)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("encode report: %w", err)
	}
	reply, err := a.caller.Call(ctx, a.queue, body, codec.ContentType)
	if err != nil {
		return domain.Ack{}, classify(op, err)
	}
	ack, err := codec.DecodeAck(reply)
	if err != nil {
		return domain.Ack{}, rejected(op, err)
	}
	if !ack.Success {
		return ack, rejected(op, fmt.Errorf("authority declined: %s", ack.Message))
	}
	return ack, nil
}
