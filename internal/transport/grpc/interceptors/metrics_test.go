package interceptors

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
)

func TestGRPCMetricsUnaryInterceptorRecordsMetrics(t *testing.T) {
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/finwise.identity.v1.Identity/IntrospectToken"}

	if _, err := interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	labels := prometheus.Labels{"service": "finwise.identity.v1.Identity", "method": "IntrospectToken", "code": codes.OK.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}
	if inflight := testutil.ToFloat64(metrics.inFlight.WithLabelValues("finwise.identity.v1.Identity")); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}
	if samples := testutil.CollectAndCount(metrics.duration); samples == 0 {
		t.Fatalf("expected histogram to record observations")
	}
}

func TestGRPCMetricsUnaryInterceptorPropagatesErrors(t *testing.T) {
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/finwise.identity.v1.Identity/WhoAmI"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, StatusFromError(domain.ErrInvalidToken)
	})
	if Code(domain.KindInvalidToken) != codes.PermissionDenied || err == nil {
		t.Fatalf("expected permission denied, got %v", err)
	}

	labels := prometheus.Labels{"service": "finwise.identity.v1.Identity", "method": "WhoAmI", "code": codes.PermissionDenied.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1 for denied call, got %f", got)
	}
}

func TestGRPCMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.requests != second.requests {
		t.Fatal("expected shared collectors")
	}
}

func TestSplitFullMethod(t *testing.T) {
	cases := map[string][2]string{
		"/finwise.identity.v1.Identity/WhoAmI": {"finwise.identity.v1.Identity", "WhoAmI"},
		"":                                     {"unknown", "unknown"},
		"/svc/":                                {"svc", "unknown"},
		"/bare":                                {"bare", "unknown"},
	}
	for in, want := range cases {
		service, method := splitFullMethod(in)
		if service != want[0] || method != want[1] {
			t.Fatalf("%q: expected %v, got %s %s", in, want, service, method)
		}
	}
}
