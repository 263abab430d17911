// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"maps"
	"net/http"
	"strings"

	config "codeberg.org/newbee/autofill/configs"
)

// baseHeaders defines the default headers to be set in responses.
//
// Autofill-Version and Autofill-Revision are added dynamically in SetResponseHeaders.
var baseHeaders = http.Header{
	"Referrer-Policy":         {"no-referrer"},
	"X-Frame-Options":         {"DENY"},
	"X-Content-Type-Options":  {"nosniff"},
	"Content-Security-Policy": {"default-src 'none'; frame-ancestors 'none'"},
	"Vary":                    {"Accept-Language, Cookie"},
}

// SetResponseHeaders adds default headers to HTTP responses.
func SetResponseHeaders(w http.ResponseWriter, r *http.Request, next http.Handler) {
	headers := w.Header()

	maps.Insert(headers, maps.All(baseHeaders))

	headers.Set("Cache-Control", cacheControl(r.URL.Path))
	headers.Set("Autofill-Version", config.BuildVersion)
	headers.Set("Autofill-Revision", config.Global.Build.Revision())

	next.ServeHTTP(w, r)
}

// cacheControl keeps form session state out of every cache. Detection and
// translation results only depend on the query, so browsers may reuse them briefly.
func cacheControl(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/forms"):
		return "no-store"
	case path == "/api/detect" || path == "/api/translate":
		return "private, max-age=300"
	default:
		return "private, no-cache"
	}
}
