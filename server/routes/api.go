// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package routes implements the JSON API handlers.

Handlers have the [middleware.FallibleHandler] shape. Errors meant for the
user are returned as [*i18n.UserError] and written by middleware.CatchError.
*/
package routes

import (
	"context"
	"errors"
	"net/http"

	"codeberg.org/newbee/autofill/core/langdetect"
	"codeberg.org/newbee/autofill/core/translate"
	"codeberg.org/newbee/autofill/i18n"
	"codeberg.org/newbee/autofill/server/middleware/limiter"
	"codeberg.org/newbee/autofill/server/session"
)

// Batch defaults used when [API] leaves them at zero.
const (
	DefaultBatchWorkers  = 4
	DefaultBatchMaxItems = 50
)

// User-facing error messages.
const (
	msgMissingText     = i18n.MsgKey("Missing text parameter")
	msgUnsupportedLang = i18n.MsgKey("Unsupported language: {{.Lang}}")
	msgInvalidBody     = i18n.MsgKey("Invalid request body")
	msgBatchTooLarge   = i18n.MsgKey("A batch may contain at most {{.Max}} items")
	msgSessionNotFound = i18n.MsgKey("Form session not found or expired")
	msgInvalidPair     = i18n.MsgKey("A field pair must name two different fields")
	msgTooManySessions = i18n.MsgKey("Too many open form sessions, try again later")
	msgMissingField    = i18n.MsgKey("Missing field name")
	msgNotFound        = i18n.MsgKey("Not found")
)

// Translator is the part of *translate.Resolver the API uses.
type Translator interface {
	Translate(ctx context.Context, text string, from, to langdetect.Lang) string
	AutoTranslate(ctx context.Context, text string) translate.Result
}

// API holds the dependencies of the handlers.
type API struct {
	Translator Translator
	Sessions   *session.Store

	// Cache and Limiter are reported by Stats. Either may be nil.
	Cache   translate.Cache
	Limiter *limiter.Limiter

	// BatchWorkers bounds the concurrent translations of one batch request.
	BatchWorkers int

	// BatchMaxItems is the largest batch accepted.
	BatchMaxItems int
}

func (api *API) batchWorkers() int {
	if api.BatchWorkers <= 0 {
		return DefaultBatchWorkers
	}

	return api.BatchWorkers
}

func (api *API) batchMaxItems() int {
	if api.BatchMaxItems <= 0 {
		return DefaultBatchMaxItems
	}

	return api.BatchMaxItems
}

// parseLang reads a language parameter, reporting unsupported values to the user.
func parseLang(r *http.Request, raw string) (langdetect.Lang, error) {
	lang, err := langdetect.Parse(raw)
	if err != nil {
		return "", msgUnsupportedLang.Error(r.Context(), http.StatusBadRequest, "Lang", raw)
	}

	return lang, nil
}

// sessionError maps session store errors to user errors.
func sessionError(r *http.Request, err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return msgSessionNotFound.Error(r.Context(), http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidPair):
		return msgInvalidPair.Error(r.Context(), http.StatusBadRequest)
	case errors.Is(err, session.ErrTooManySessions):
		return msgTooManySessions.Error(r.Context(), http.StatusServiceUnavailable)
	default:
		return err
	}
}
