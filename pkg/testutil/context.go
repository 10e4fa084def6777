package testutil

import (
	"net/http"
	"time"

	"customerhub/pkg/requestcontext"
)

// WithActor simulates what the auth middleware does for an authenticated
// operator.
func WithActor(req *http.Request, actorID, role string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actorID, role))
}

// WithRequestTime pins the clock seen by handlers and services.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
