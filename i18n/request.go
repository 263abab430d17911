// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// Names of the request inputs that select a language.
const (
	LangParam  = "lang"
	LangCookie = "Lang"
)

type tagKey struct{}

// WithTag returns a copy of ctx carrying t.
func WithTag(ctx context.Context, t language.Tag) context.Context {
	return context.WithValue(ctx, tagKey{}, t)
}

// TagFrom returns the tag stored in ctx, or the base locale's tag. ctx may be nil.
func TagFrom(ctx context.Context) language.Tag {
	if ctx == nil {
		return baseTag
	}

	if t, ok := ctx.Value(tagKey{}).(language.Tag); ok && t != (language.Tag{}) {
		return t
	}

	return baseTag
}

// FromRequest picks the loaded locale that best fits r. Preferences are read
// from the lang query parameter, then the Lang cookie, then Accept-Language.
// lang=auto skips the cookie, letting a user fall back to the browser setting.
func FromRequest(r *http.Request) language.Tag {
	cat := active.Load()
	if r == nil || cat == nil {
		return baseTag
	}

	var prefs []string

	param := r.URL.Query().Get(LangParam)
	auto := strings.EqualFold(param, "auto")

	if param != "" && !auto {
		prefs = append(prefs, param)
	}

	if cookie, err := r.Cookie(LangCookie); err == nil && cookie.Value != "" && !auto {
		prefs = append(prefs, cookie.Value)
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		prefs = append(prefs, accept)
	}

	_, i := language.MatchStrings(cat.matcher, prefs...)

	return cat.tags[i]
}

// WithRequest is WithTag(ctx, FromRequest(r)).
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return WithTag(ctx, FromRequest(r))
}
