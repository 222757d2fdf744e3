package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracerExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := InitTracer("chatgate-test", logger,
		WithWriter(&buf),
		WithServiceVersion("0.0.1"))
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("tracer_test").Start(context.Background(), "demo-span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "demo-span") {
		t.Errorf("exported trace output missing span name: %s", out)
	}
	if !strings.Contains(out, "chatgate-test") {
		t.Errorf("exported trace output missing service name: %s", out)
	}
	if !strings.Contains(out, "0.0.1") {
		t.Errorf("exported trace output missing service version: %s", out)
	}
}
