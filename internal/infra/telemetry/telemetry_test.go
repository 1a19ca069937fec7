package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
)

func TestCredentialMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCredentialMetrics(reg)

	m.CodeRequested(OutcomeSuccess)
	m.CodeRequested("CodeDeliveryFailed")
	m.PasswordChanged("emailed_code", OutcomeSuccess)
	m.PasswordChanged("emailed_code", OutcomeSuccess)

	if got := testutil.ToFloat64(m.codeRequests.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 successful code request, got %v", got)
	}
	if got := testutil.ToFloat64(m.passwordChanges.WithLabelValues("emailed_code", OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 password changes, got %v", got)
	}
	if n := testutil.CollectAndCount(m.codeRequests); n != 2 {
		t.Fatalf("expected 2 outcome series, got %d", n)
	}

	var nilMetrics *CredentialMetrics
	nilMetrics.CodeRequested(OutcomeSuccess)
	nilMetrics.PasswordChanged("current_password", OutcomeSuccess)
}

func TestTracerProviderWithoutExporter(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{
		ServiceName:  "finwise-identity-test",
		SamplingRate: 1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected sampled span with valid context")
	}
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
