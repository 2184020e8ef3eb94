package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Instrument wraps the handler with OpenTelemetry HTTP instrumentation.
// Spans are named "{method} {path}". Provider options (tracer, meter) are
// passed through to otelhttp.
func Instrument(operation string, opts ...otelhttp.Option) Middleware {
	opts = append([]otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithSpanOptions(trace.WithAttributes(
			attribute.String("service.component", operation),
		)),
	}, opts...)
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation, opts...)
	}
}
