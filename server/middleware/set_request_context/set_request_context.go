// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package set_request_context provides the middleware that starts every request's RequestContext.
package set_request_context

import (
	"net/http"

	"codeberg.org/newbee/autofill/server/request_context"
)

// WithRequestContext attaches a new RequestContext to r and sends its ID as X-Request-Id.
func WithRequestContext(w http.ResponseWriter, r *http.Request, next http.Handler) {
	r = r.WithContext(request_context.WithRequestContext(r.Context(), r))

	w.Header().Set(request_context.RequestIDHeader, request_context.FromRequest(r).RequestID)

	next.ServeHTTP(w, r)
}
