// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"net/http/pprof"
	"runtime/trace"
	"sync"
	"time"

	config "codeberg.org/newbee/autofill/configs"
	"codeberg.org/newbee/autofill/server/middleware"
	"codeberg.org/newbee/autofill/server/routes"
)

// DefineRoutes registers the API handlers of api.
func (router *Router) DefineRoutes(api *routes.API) {
	// Translation routes
	router.HandleFunc("GET /api/detect", middleware.CatchError(api.Detect))
	router.HandleFunc("GET /api/translate", middleware.CatchError(api.Translate))
	router.HandleFunc("POST /api/translate/batch", middleware.CatchError(api.TranslateBatch))

	// Form session routes
	router.HandleFunc("POST /api/forms", middleware.CatchError(api.CreateForm))
	router.HandleFunc("GET /api/forms/{token}", middleware.CatchError(api.FormState))
	router.HandleFunc("DELETE /api/forms/{token}", middleware.CatchError(api.CloseForm))
	router.HandleFunc("POST /api/forms/{token}/blur", middleware.CatchError(api.Blur))
	router.HandleFunc("POST /api/forms/{token}/keydown", middleware.CatchError(api.KeyDown))
	router.HandleFunc("POST /api/forms/{token}/focus", middleware.CatchError(api.Focus))
	router.HandleFunc("DELETE /api/forms/{token}/suggestions", middleware.CatchError(api.ClearSuggestions))
	router.HandleFunc("DELETE /api/forms/{token}/suggestions/{field}", middleware.CatchError(api.ClearSuggestion))

	router.HandleFunc("GET /healthz", middleware.CatchError(routes.Healthz))

	if config.Global.Development.InDevelopment {
		registerDebugRoutes(router, api)
	}

	// Everything else. This also shadows the mux's 405 responses.
	router.HandleFunc("/", middleware.CatchError(routes.NotFound))
}

var (
	flightRecorder     = trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: time.Minute})
	flightRecorderOnce sync.Once
)

func registerDebugRoutes(router *Router, api *routes.API) {
	flightRecorderOnce.Do(func() {
		if err := flightRecorder.Start(); err != nil {
			panic(err)
		}
	})

	router.HandleFunc("GET /debug/pprof/", pprof.Index)
	router.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	router.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	router.HandleFunc("GET /debug/stats", middleware.CatchError(api.Stats))
	router.HandleFunc("GET /debug/flight", func(w http.ResponseWriter, r *http.Request) {
		_, _ = flightRecorder.WriteTo(w)
	})
}
