package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/web/middleware"
)

// requestContext returns the request context carrying the client IP and
// user agent recorded in the commit audit entry, plus the requester.
func requestContext(r *http.Request) (context.Context, core.Requester) {
	ip := r.RemoteAddr // already rewritten by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	ctx := core.ContextWithIPAddress(r.Context(), ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx, middleware.RequesterFromContext(r.Context())
}
