// Package metrics holds the Prometheus collectors exported by both services.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "grocery"

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func histogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// register adds every collector to reg, tolerating collectors that are already there.
func register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var errs []error
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Robot instruments the robot worker.
type Robot struct {
	Orders         *prometheus.CounterVec // by report status
	DecodeErrors   prometheus.Counter
	Picks          prometheus.Counter
	ReportAttempts *prometheus.CounterVec // by outcome: ok or the transport error kind
	ReportFailures prometheus.Counter
	OrderDuration  prometheus.Histogram
}

func NewRobot(reg prometheus.Registerer) (*Robot, error) {
	m := &Robot{
		Orders:         counterVec("robot", "orders_total", "Orders processed, by report status.", "status"),
		DecodeErrors:   counter("robot", "decode_errors_total", "Broadcast payloads dropped as undecodable or invalid."),
		Picks:          counter("robot", "picks_total", "Items picked."),
		ReportAttempts: counterVec("robot", "report_attempts_total", "Report RPC attempts, by outcome.", "outcome"),
		ReportFailures: counter("robot", "report_failures_total", "Reports abandoned after every retry failed."),
		OrderDuration: histogram("robot", "order_duration_seconds", "Time from broadcast receipt to report completion.",
			[]float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}),
	}
	if err := register(reg, m.Orders, m.DecodeErrors, m.Picks, m.ReportAttempts, m.ReportFailures, m.OrderDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// Analytics instruments the analytics collector.
type Analytics struct {
	Events         *prometheus.CounterVec // by outcome
	AppendDuration prometheus.Histogram
}

const (
	OutcomeAppended   = "appended"
	OutcomeDuplicate  = "duplicate"
	OutcomeDecode     = "decode_error"
	OutcomeValidation = "validation_error"
	OutcomeStore      = "store_error"
)

func NewAnalytics(reg prometheus.Registerer) (*Analytics, error) {
	m := &Analytics{
		Events: counterVec("analytics", "events_total", "Telemetry events received, by outcome.", "outcome"),
		AppendDuration: histogram("analytics", "append_duration_seconds", "Time to durably append one record.",
			prometheus.ExponentialBuckets(0.0005, 2, 12)),
	}
	if err := register(reg, m.Events, m.AppendDuration); err != nil {
		return nil, err
	}
	return m, nil
}
