// Package codec is the single wire format of the fleet: JSON documents with an
// explicit schema_version field.
package codec

import (
	"fmt"

	"github.com/bytedance/sonic"

	"grocery-fleet/internal/domain"
)

const ContentType = "application/json"

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

func EncodeBroadcast(b domain.OrderBroadcast) ([]byte, error) {
	b.SchemaVersion = domain.SchemaVersion
	return api.Marshal(b)
}

// DecodeBroadcast parses and validates an order broadcast.
func DecodeBroadcast(payload []byte) (domain.OrderBroadcast, error) {
	var b domain.OrderBroadcast
	if err := decode("OrderBroadcast", payload, &b, &b.SchemaVersion); err != nil {
		return domain.OrderBroadcast{}, err
	}
	if err := b.Validate(); err != nil {
		return domain.OrderBroadcast{}, err
	}
	return b, nil
}

func EncodeReport(r domain.JobStatusReport) ([]byte, error) {
	r.SchemaVersion = domain.SchemaVersion
	if r.ProcessedItems == nil {
		r.ProcessedItems = map[string]int32{}
	}
	return api.Marshal(r)
}

func DecodeReport(payload []byte) (domain.JobStatusReport, error) {
	var r domain.JobStatusReport
	if err := decode("JobStatusReport", payload, &r, &r.SchemaVersion); err != nil {
		return domain.JobStatusReport{}, err
	}
	return r, nil
}

func EncodeAck(a domain.Ack) ([]byte, error) { return api.Marshal(a) }

func DecodeAck(payload []byte) (domain.Ack, error) {
	var a domain.Ack
	if err := api.Unmarshal(payload, &a); err != nil {
		return domain.Ack{}, &domain.DecodeError{Schema: "Ack", Err: err}
	}
	return a, nil
}

func EncodeMetric(e domain.MetricEvent) ([]byte, error) {
	e.SchemaVersion = domain.SchemaVersion
	return api.Marshal(e)
}

// DecodeMetric only parses; semantic checks are left to the caller.
func DecodeMetric(payload []byte) (domain.MetricEvent, error) {
	var e domain.MetricEvent
	if err := decode("MetricEvent", payload, &e, &e.SchemaVersion); err != nil {
		return domain.MetricEvent{}, err
	}
	return e, nil
}

func decode(schema string, payload []byte, v any, version *int) error {
	if len(payload) == 0 {
		return &domain.DecodeError{Schema: schema, Err: fmt.Errorf("empty payload")}
	}
	if err := api.Unmarshal(payload, v); err != nil {
		return &domain.DecodeError{Schema: schema, Err: err}
	}
	switch *version {
	case 0:
		*version = domain.SchemaVersion
	case domain.SchemaVersion:
	default:
		return &domain.DecodeError{Schema: schema, Err: fmt.Errorf("unsupported schema_version %d", *version)}
	}
	return nil
}
