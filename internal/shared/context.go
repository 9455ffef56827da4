package shared

import (
	"context"
	"net"
	"net/http"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// PrincipalFromContext extracts the authenticated principal from the session
// stored in context. Returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	return SessionFromContext(ctx).Principal()
}

type clientContextKey struct{}

// Client carries the request origin recorded on every audit entry.
type Client struct {
	IP        string
	UserAgent string
}

// ClientFromRequest captures the caller's address and user agent. The port
// is stripped so the stored IP matches what RealIP resolved.
func ClientFromRequest(r *http.Request) Client {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Client{IP: ip, UserAgent: r.UserAgent()}
}

// ContextWithClient stores the request origin in context.
func ContextWithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientContextKey{}, c)
}

// ClientFromContext extracts the request origin from context. The zero value
// means the origin is unknown, e.g. for work done outside a request.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientContextKey{}).(Client)
	return c
}
