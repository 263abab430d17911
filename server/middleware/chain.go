// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"
)

// Middleware handles a request on its way to next, and may answer it without calling next.
type Middleware func(w http.ResponseWriter, r *http.Request, next http.Handler)

// Wrap returns the handler that runs m in front of next.
func Wrap(m Middleware, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { m(w, r, next) }
}

// Chain returns the handler that runs ms in order, outermost first, and then h.
func Chain(h http.Handler, ms ...Middleware) http.Handler {
	for i := len(ms) - 1; i >= 0; i-- {
		h = Wrap(ms[i], h)
	}

	return h
}

// WithServerTiming makes a Server-Timing collector available to audit spans
// and writes their metrics as a Server-Timing header.
func WithServerTiming(w http.ResponseWriter, r *http.Request, next http.Handler) {
	servertiming.Middleware(next, nil).ServeHTTP(w, r)
}
