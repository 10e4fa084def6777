package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"customerhub/pkg/requestcontext"
)

// Channels recorded on audit lines.
const (
	ChannelWeb     = "web"
	ChannelMobile  = "mobile"
	ChannelBot     = "bot"
	ChannelAPI     = "api"
	HeaderChannel  = "X-Channel"
	maxChannelSize = 32
)

// ClientMetadata extracts client IP, User-Agent and booking channel and adds
// them to the context. Apply it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua, ChannelFor(r.Header.Get(HeaderChannel), ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ChannelFor prefers an explicit channel header and otherwise classifies the
// User-Agent.
func ChannelFor(explicit, userAgent string) string {
	if c := strings.ToLower(strings.TrimSpace(explicit)); c != "" && len(c) <= maxChannelSize {
		return c
	}
	if userAgent == "" {
		return ChannelAPI
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return ChannelBot
	case ua.Mobile():
		return ChannelMobile
	}
	if name, _ := ua.Browser(); name != "" && ua.Mozilla() != "" {
		return ChannelWeb
	}
	return ChannelAPI
}

// ClientIPFromRequest extracts the client IP, honouring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
