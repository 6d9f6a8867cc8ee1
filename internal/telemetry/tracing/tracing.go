package tracing

import (
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("liftlog-backend")

// EndSpanWithErrCheck records the error on the span, if any, and ends it.
func EndSpanWithErrCheck(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// HoneycombSetup uses the honeycomb distro to bootstrap the OpenTelemetry SDK.
// Returns a shutdown function to be deferred by the caller. When tracing is
// disabled the returned shutdown is a noop and no spans leave the process.
func HoneycombSetup(tracingEnabled bool, serviceName string, rdb *redis.Client) (func(), error) {
	if !tracingEnabled {
		log.Debugln("honeycomb tracing disabled")
		return func() {}, nil
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(honeycomb.NewBaggageSpanProcessor()),
	)
	if err != nil {
		return nil, err
	}

	rdb.AddHook(redisotel.NewTracingHook())

	log.Debugf("honeycomb tracing set up for service: %s", serviceName)
	return otelShutdown, nil
}
