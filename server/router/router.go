// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package router assembles the HTTP handler: an http.ServeMux holding the API
routes, behind a chain of middleware.
*/
package router

import (
	"net/http"

	"codeberg.org/newbee/autofill/server/middleware"
	"codeberg.org/newbee/autofill/server/middleware/limiter"
	"codeberg.org/newbee/autofill/server/middleware/set_request_context"
	"codeberg.org/newbee/autofill/server/routes"
)

// Router is the mux of API routes together with the middleware in front of it.
type Router struct {
	*http.ServeMux

	handler http.Handler
}

// New returns a Router serving api. A nil lim disables rate limiting.
func New(api *routes.API, lim *limiter.Limiter) *Router {
	router := &Router{ServeMux: http.NewServeMux()}
	router.DefineRoutes(api)
	router.handler = middleware.Chain(router.ServeMux, chain(lim)...)

	return router
}

// chain lists the middleware outermost first.
func chain(lim *limiter.Limiter) []middleware.Middleware {
	ms := []middleware.Middleware{
		middleware.WithServerTiming,
		middleware.NormalizeURL,                // trailing slashes redirect before routing
		set_request_context.WithRequestContext, // request ID and message language
		middleware.SetResponseHeaders,
	}

	if lim != nil {
		ms = append(ms, lim.Evaluate)
	}

	return ms
}

// ServeHTTP runs the middleware chain and then the mux.
func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.handler.ServeHTTP(w, r)
}
