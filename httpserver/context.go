package httpserver

import (
	"context"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

type contextKey struct{}

var deviceContextKey contextKey

// WithDeviceContext attaches the authenticated device identity to the
// request context.
func WithDeviceContext(ctx context.Context, dc interfaces.DeviceContext) context.Context {
	return context.WithValue(ctx, deviceContextKey, dc)
}

// DeviceFromContext returns the DeviceContext injected by the
// RequestAuthenticator, if any.
func DeviceFromContext(ctx context.Context) (interfaces.DeviceContext, bool) {
	dc, ok := ctx.Value(deviceContextKey).(interfaces.DeviceContext)
	return dc, ok
}
