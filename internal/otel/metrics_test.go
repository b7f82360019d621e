package otel

import (
	"context"
	"testing"
	"time"
)

func TestInitMetrics_RecordCommandOp(t *testing.T) {
	ctx := context.Background()
	_, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordCommandOp(ctx, "submit", "command", "pending")
	RecordCommandOp(ctx, "claim", "command", "processing")
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
}

func TestRecordInterpretation_RecordActuatorRun_RecordSSEEvent(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "record-test")
	_ = InitMetrics(ctx)
	RecordInterpretation(ctx, "command", 100*time.Millisecond)
	RecordActuatorRun(ctx, "go forward", 50*time.Millisecond, false)
	RecordActuatorRun(ctx, "turn left", 20*time.Millisecond, true)
	RecordSSEEvent(ctx)
}

func TestInitMetricsWithCommandCount(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "commandcount-test")
	err := InitMetricsWithCommandCount(ctx, func() (pending, processing, completed, failed int64) {
		return 1, 2, 3, 0
	})
	if err != nil {
		t.Fatalf("InitMetricsWithCommandCount: %v", err)
	}
}

func TestInitMetricsWithCommandCount_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "commandcount-nil-test")
	err := InitMetricsWithCommandCount(ctx, nil)
	if err != nil {
		t.Fatalf("InitMetricsWithCommandCount(nil): %v", err)
	}
}
