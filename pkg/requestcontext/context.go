// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	actor := requestcontext.ActorID(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	channelKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyActorRole   = actorRoleKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyChannel     = channelKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Actor (authenticated operator or administrator)
// -----------------------------------------------------------------------------

// ActorID returns the authenticated operator identifier, or "" when unauthenticated.
func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyActorID).(string); ok {
		return v
	}
	return ""
}

// ActorRole returns the role claim of the authenticated operator.
func ActorRole(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyActorRole).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the authenticated operator into the context.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorID, actorID)
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent, booking channel)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// Channel is the coarse booking channel derived from the User-Agent
// ("web", "mobile", "api").
func Channel(ctx context.Context) string {
	if ch, ok := ctx.Value(ContextKeyChannel).(string); ok {
		return ch
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent and channel into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, channel string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return context.WithValue(ctx, ContextKeyChannel, channel)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, consumers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
