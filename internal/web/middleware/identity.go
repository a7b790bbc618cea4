package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inventory/internal/core"
)

// Identity headers set by the authenticating proxy in front of the service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
	HeaderUserArea = "X-User-Area"
)

// Roles understood by RequesterForRole.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleOperator   = "operador"
	RoleExternal   = "externo"
)

type ctxKey struct{}

// trustKey marks a request whose identity headers may be believed.
type trustKey struct{}

// RequesterFromHeaders maps proxy identity headers to a core.Requester.
func RequesterFromHeaders(h http.Header) core.Requester {
	return RequesterForRole(h.Get(HeaderUserID), h.Get(HeaderUserName), h.Get(HeaderUserRole), h.Get(HeaderUserArea))
}

// RequesterForRole builds a requester from an identity and role.
//
// admin is elevated and may import into every area. supervisor and operador
// may import into their own area. Any other role, externo included, may not
// import at all, and neither may a requester without an id.
func RequesterForRole(id, name, role, area string) core.Requester {
	req := core.Requester{
		ID:       strings.TrimSpace(id),
		Name:     strings.TrimSpace(name),
		Category: strings.ToLower(strings.TrimSpace(area)),
	}

	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		req.Elevated = true
		req.MayImport = true
	case RoleSupervisor, RoleOperator:
		req.MayImport = true
	}

	if req.ID == "" {
		req.MayImport = false
	}
	return req
}

// Identity stores the requester described by the identity headers in the
// request context. The headers are believed only when the connection came
// from a trusted proxy (TrustedRealIP) or carried a valid API key
// (APIKeyAuth). Any other request gets an anonymous requester, which core
// rejects when an import is attempted.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req core.Requester
		if identityTrusted(r.Context()) {
			req = RequesterFromHeaders(r.Header)
		} else if r.Header.Get(HeaderUserID) != "" {
			slog.Warn("identity: ignoring identity headers from untrusted peer",
				"remote_addr", r.RemoteAddr,
				"user", r.Header.Get(HeaderUserID),
			)
		}
		next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), req)))
	})
}

// trustIdentity returns r marked as carrying believable identity headers.
func trustIdentity(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), trustKey{}, true))
}

func identityTrusted(ctx context.Context) bool {
	ok, _ := ctx.Value(trustKey{}).(bool)
	return ok
}

// WithRequester returns a copy of ctx carrying req.
func WithRequester(ctx context.Context, req core.Requester) context.Context {
	return context.WithValue(ctx, ctxKey{}, req)
}

// RequesterFromContext returns the requester stored by Identity.
func RequesterFromContext(ctx context.Context) core.Requester {
	req, _ := ctx.Value(ctxKey{}).(core.Requester)
	return req
}
