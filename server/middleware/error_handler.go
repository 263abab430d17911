// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/rs/zerolog/log"

	config "codeberg.org/newbee/autofill/configs"
	"codeberg.org/newbee/autofill/core/audit"
	"codeberg.org/newbee/autofill/i18n"
	"codeberg.org/newbee/autofill/server/request_context"
	"codeberg.org/newbee/autofill/server/utils"
)

// FallibleHandler is an HTTP handler that reports failure by returning an error.
type FallibleHandler = func(w http.ResponseWriter, r *http.Request) error

// CatchError wraps a [FallibleHandler], providing centralized error handling,
// response buffering and request logging.
//
// The handler's output is buffered. After it returns:
//   - an [*i18n.UserError] discards the buffer and is written as a JSON error
//     with the error's status and localized message;
//   - any other error discards the buffer unless the handler already wrote an
//     error status, and is reported as a 500 with a generic message;
//   - otherwise the buffered response is written to the client.
//
// The request is then logged through an audit span.
func CatchError(handler FallibleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := request_context.FromRequest(r)

		span := audit.Span{
			Destination: audit.ToUser,
			RequestID:   ctx.RequestID,
			Method:      r.Method,
			URL:         r.URL.String(),
		}

		_ = span.Begin(r.Context())

		recorder := httptest.NewRecorder()

		ctx.Err = handler(recorder, r)

		var userErr *i18n.UserError

		switch {
		case errors.As(ctx.Err, &userErr):
			ctx.Status = userErr.Status
			if ctx.Status < http.StatusBadRequest {
				ctx.Status = http.StatusBadRequest
			}

			span.Size = writeError(w, ctx.Status, userErr.Error())

		case ctx.Err != nil && recorder.Code < http.StatusBadRequest:
			ctx.Status = http.StatusInternalServerError

			span.Size = writeError(w, ctx.Status, i18n.Tr(r.Context(), "Internal server error"))

		default:
			ctx.Status = recorder.Code

			maps.Copy(w.Header(), recorder.Header())
			w.WriteHeader(recorder.Code)

			n, err := recorder.Body.WriteTo(w)
			if err != nil {
				log.Err(err).Str("request_id", ctx.RequestID).Msg("Failed to write response body")
			}

			span.Size = int(n)
		}

		span.End()

		span.StatusCode = ctx.Status
		span.Error = ctx.Err

		if ctx.Status >= http.StatusInternalServerError {
			log.Error().
				Err(ctx.Err).
				Str("request_id", ctx.RequestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(ctx.Received)).
				Msg("Request failed")
		}

		if !config.Global.ShouldSkipServerLogging(r.URL.Path) {
			span.Log()
		}
	}
}

// writeError writes a JSON error body and returns the number of bytes written.
func writeError(w http.ResponseWriter, status int, message string) int {
	counter := &countingWriter{ResponseWriter: w}

	if err := utils.WriteJSONError(counter, status, message); err != nil {
		log.Err(err).Msg("Failed to write error response")
	}

	return counter.n
}

type countingWriter struct {
	http.ResponseWriter

	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.ResponseWriter.Write(p)
	c.n += n

	return n, err
}
