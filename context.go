package limsclient

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a correlation ID to ctx. It is sent as the
// X-Request-ID header on every request issued under this context; without
// one the client generates a fresh UUID per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func contextRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
