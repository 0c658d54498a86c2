package tracing

import (
	"context"
	"io"
	"testing"
	"time"

	"movietrends/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

var discard = log.NewStdLogger(io.Discard)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(&conf.Tracing{}, "movietrends", "test", discard)
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if p.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if p.Tracer("test") == nil {
		t.Error("expected a tracer from the global provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestNewProvider_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		c       conf.Tracing
		service string
	}{
		{"missing service name", conf.Tracing{Enabled: true, SamplingRate: 0.1}, ""},
		{"negative sampling", conf.Tracing{Enabled: true, SamplingRate: -0.1}, "movietrends"},
		{"sampling above one", conf.Tracing{Enabled: true, SamplingRate: 1.5}, "movietrends"},
		{"unsupported exporter", conf.Tracing{Enabled: true, SamplingRate: 1, Exporter: "zipkin"}, "movietrends"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(&tt.c, tt.service, "test", discard); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewProvider_ValidConfig(t *testing.T) {
	tests := []struct {
		name string
		c    conf.Tracing
	}{
		{"otlp-http with 10% sampling", conf.Tracing{Enabled: true, Exporter: ExporterHTTP, Endpoint: "localhost:4318", SamplingRate: 0.1, Insecure: true}},
		{"otlp-grpc with 100% sampling", conf.Tracing{Enabled: true, Exporter: ExporterGRPC, Endpoint: "localhost:4317", SamplingRate: 1, Insecure: true}},
		{"default exporter with 0% sampling", conf.Tracing{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(&tt.c, "movietrends", "test", discard)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !p.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}
			_, span := p.Tracer(TracerName).Start(context.Background(), "test-span")
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.Shutdown(ctx); err != nil {
				t.Errorf("unexpected shutdown error: %v", err)
			}
		})
	}
}
