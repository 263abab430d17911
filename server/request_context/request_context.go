// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package request_context holds the state shared by the middleware chain and
// the handlers of one request. It sits apart from package middleware so that
// core packages can read the request ID without an import cycle.
package request_context

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"codeberg.org/newbee/autofill/core/idgen"
	"codeberg.org/newbee/autofill/i18n"
)

// RequestIDHeader echoes the request ID to the client.
const RequestIDHeader = "X-Request-Id"

// RequestContext is the mutable state of one request.
type RequestContext struct {
	// RequestID also prefixes the IDs of translator calls made for the request.
	RequestID string

	Received time.Time

	// Lang is the language of messages in the response.
	Lang language.Tag

	// Status and Err are filled in by middleware.CatchError.
	Status int
	Err    error
}

type ctxKey struct{}

// WithRequestContext returns ctx carrying a fresh RequestContext and the
// message language negotiated from r.
func WithRequestContext(ctx context.Context, r *http.Request) context.Context {
	ctx = i18n.WithRequest(ctx, r)

	return context.WithValue(ctx, ctxKey{}, &RequestContext{
		RequestID: idgen.Make(),
		Received:  time.Now(),
		Lang:      i18n.TagFrom(ctx),
		Status:    http.StatusOK,
	})
}

// FromContext returns the RequestContext of ctx, or an empty one when ctx has none.
func FromContext(ctx context.Context) *RequestContext {
	if ctx != nil {
		if rc, ok := ctx.Value(ctxKey{}).(*RequestContext); ok {
			return rc
		}
	}

	return &RequestContext{}
}

// FromRequest is FromContext(r.Context()).
func FromRequest(r *http.Request) *RequestContext {
	return FromContext(r.Context())
}
