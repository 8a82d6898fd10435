// Package transport carries request and response lines between the
// controller and the worker.
//
// Shm is the shared memory rendezvous: one fixed buffer per direction and a
// named semaphore that hands it over. Pipe frames lines over a byte stream.
// Loopback connects two ends inside one process.
//
// Transports are instrumented with OpenTelemetry; the no-op providers are
// used unless a Meter or Tracer is supplied.
package transport

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/shm"
)

// MaxLine is the per-line capacity of every transport, terminator included.
const MaxLine = shm.DefaultFieldSize

const instrumentationName = "github.com/srediag/sumipc/pkg/transport"

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport: closed")

var internalLogger = logging.New("transport", nil)

// Role tells which end of the channel a transport is.
type Role string

const (
	RoleController Role = "controller"
	RoleWorker     Role = "worker"
)

// Config holds the instrumentation of a transport. Nil fields fall back to
// the no-op providers.
type Config struct {
	Meter  metric.Meter
	Tracer trace.Tracer
}

type instruments struct {
	tracer trace.Tracer
	lines  metric.Int64Counter
	sent   metric.MeasurementOption
	recvd  metric.MeasurementOption
}

func newInstruments(kind string, role Role, cfg Config) instruments {
	meter := cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	lines, err := meter.Int64Counter("sumipc.transport.lines",
		metric.WithDescription("Lines moved through the transport"),
		metric.WithUnit("{line}"))
	if err != nil {
		internalLogger.Warnf("create line counter: %v", err)
		lines, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("sumipc.transport.lines")
	}
	common := []attribute.KeyValue{
		attribute.String("transport", kind),
		attribute.String("role", string(role)),
	}
	return instruments{
		tracer: tracer,
		lines:  lines,
		sent:   metric.WithAttributes(append(common, attribute.String("direction", "send"))...),
		recvd:  metric.WithAttributes(append(common, attribute.String("direction", "recv"))...),
	}
}
