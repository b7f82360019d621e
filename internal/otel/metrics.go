package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	commandOpsCounter   metric.Int64Counter
	interpretDuration   metric.Float64Histogram
	actuatorRunsCounter metric.Int64Counter
	actuatorDuration    metric.Float64Histogram
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		commandOpsCounter, err = m.Int64Counter("robopet_command_operations_total", metric.WithDescription("Total command operations (submit, claim, finish, etc.)"))
		if err != nil {
			return
		}
		interpretDuration, err = m.Float64Histogram("robopet_interpret_duration_seconds", metric.WithDescription("Utterance interpretation duration in seconds"))
		if err != nil {
			return
		}
		actuatorRunsCounter, err = m.Int64Counter("robopet_actuator_runs_total", metric.WithDescription("Total actuator executions"))
		if err != nil {
			return
		}
		actuatorDuration, err = m.Float64Histogram("robopet_actuator_duration_seconds", metric.WithDescription("Actuator execution duration in seconds"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("robopet_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("robopet_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordCommandOp records a command operation (submit, claim, finish, etc.).
func RecordCommandOp(ctx context.Context, op string, kind string, status string) {
	if commandOpsCounter == nil {
		return
	}
	commandOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		AttrKind.String(kind),
		AttrStatus.String(status),
	))
}

// RecordInterpretation records how long one interpretation took.
func RecordInterpretation(ctx context.Context, kind string, duration time.Duration) {
	if interpretDuration != nil {
		interpretDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrKind.String(kind)))
	}
}

// RecordActuatorRun records one actuator execution and its duration.
func RecordActuatorRun(ctx context.Context, action string, duration time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	if actuatorRunsCounter != nil {
		actuatorRunsCounter.Add(ctx, 1, metric.WithAttributes(AttrAction.String(action), attribute.String("outcome", outcome)))
	}
	if actuatorDuration != nil {
		actuatorDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrAction.String(action)))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// CommandCountFunc returns (pending, processing, completed, failed) counts.
// Used for the robopet_commands_total gauge.
type CommandCountFunc func() (pending, processing, completed, failed int64)

// InitMetricsWithCommandCount creates instruments and optionally registers a callback for command gauges.
// Call after InitMeterProvider. If commandCount is nil, command gauges are not reported.
func InitMetricsWithCommandCount(ctx context.Context, commandCount CommandCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if commandCount == nil {
		return nil
	}
	m := Meter()
	commandsGauge, err := m.Float64ObservableGauge("robopet_commands_total", metric.WithDescription("Number of commands by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		pending, processing, completed, failed := commandCount()
		o.ObserveFloat64(commandsGauge, float64(pending), metric.WithAttributes(AttrStatus.String("pending")))
		o.ObserveFloat64(commandsGauge, float64(processing), metric.WithAttributes(AttrStatus.String("processing")))
		o.ObserveFloat64(commandsGauge, float64(completed), metric.WithAttributes(AttrStatus.String("completed")))
		o.ObserveFloat64(commandsGauge, float64(failed), metric.WithAttributes(AttrStatus.String("failed")))
		return nil
	}, commandsGauge)
	return err
}
