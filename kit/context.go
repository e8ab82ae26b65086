package kit

import "context"

type contextKey string

const (
	// TransportKey names the surface a call came in through:
	// "http", "mcp", "cli" or "watch".
	TransportKey contextKey = "unveil_transport"
	RequestIDKey contextKey = "unveil_request_id"
)

// WithTransport records the transport in ctx.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the recorded transport, "http" when none was set.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok && v != "" {
		return v
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID returns the request ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
