package domain

import "time"

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusNoOp    Status = "NO_OP"
)

// JobStatusReport is what a robot sends back to the inventory service for one order.
// RobotID, Aisle and OrderType are always present on the wire; OrderType is the
// empty string when the broadcast carried none.
type JobStatusReport struct {
	SchemaVersion  int              `json:"schema_version"`
	OrderID        string           `json:"order_id"`
	OrderType      string           `json:"order_type"`
	RobotID        string           `json:"robot_id"`
	Aisle          string           `json:"aisle"`
	Status         Status           `json:"status"`
	ProcessedItems map[string]int32 `json:"processed_items"`
}

// Ack is the inventory service's answer to a report.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// MetricEvent is one analytics record. Timestamp is Unix seconds (UTC).
type MetricEvent struct {
	SchemaVersion   int     `json:"schema_version,omitempty"`
	OrderID         string  `json:"order_id"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       int64   `json:"timestamp"`
}

// NewMetricEvent stamps an event for an order that completed at `at`.
func NewMetricEvent(orderID string, status Status, d time.Duration, at time.Time) MetricEvent {
	return MetricEvent{
		SchemaVersion:   SchemaVersion,
		OrderID:         orderID,
		Status:          string(status),
		DurationSeconds: d.Seconds(),
		Timestamp:       at.UTC().Unix(),
	}
}

func (e MetricEvent) Validate() error {
	switch {
	case e.OrderID == "":
		return &ValidationError{Field: "order_id", Reason: "must not be empty"}
	case e.Status == "":
		return &ValidationError{Field: "status", Reason: "must not be empty"}
	case e.DurationSeconds < 0:
		return &ValidationError{Field: "duration_seconds", Reason: "must not be negative"}
	}
	return nil
}

// MetricHeader is the field order of a stored MetricEvent record.
var MetricHeader = []string{"order_id", "status", "duration_seconds", "timestamp"}
