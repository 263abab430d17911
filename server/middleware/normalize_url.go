// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"strings"
)

// NormalizeURL redirects paths with a trailing slash (except root) to the
// path without it. GET and HEAD get a 308 so that clients keep the method;
// other methods are redirected the same way, since 308 also preserves the body.
func NormalizeURL(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if r.URL.Path == "/" || !strings.HasSuffix(r.URL.Path, "/") {
		next.ServeHTTP(w, r)

		return
	}

	target := *r.URL
	target.Path = strings.TrimRight(target.Path, "/")
	target.RawPath = ""

	// A leading "//" would turn the Location into a scheme-relative URL.
	target.Path = "/" + strings.TrimLeft(target.Path, "/")

	http.Redirect(w, r, target.String(), http.StatusPermanentRedirect)
}
