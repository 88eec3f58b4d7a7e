package testutil

import (
	"context"
	"net/http"

	"steward/internal/platform/middleware"
)

// WithAdminSubject adds an authenticated admin subject to the request
// context, simulating what the admin middleware does after validating a
// token.
func WithAdminSubject(req *http.Request, subject string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeySubject, subject)
	return req.WithContext(ctx)
}

// WithRequestID adds a request id to the request context.
func WithRequestID(req *http.Request, id string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyRequestID, id)
	return req.WithContext(ctx)
}
