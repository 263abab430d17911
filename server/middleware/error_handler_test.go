// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/newbee/autofill/i18n"
	"codeberg.org/newbee/autofill/server/request_context"
)

func TestMain(m *testing.M) {
	if err := i18n.Setup(); err != nil {
		panic(err)
	}

	m.Run()
}

// createTestRequest creates a test HTTP request with request context.
func createTestRequest(t *testing.T, acceptLanguage string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}

	return req.WithContext(request_context.WithRequestContext(req.Context(), req))
}

func TestCatchError(t *testing.T) {
	t.Parallel()

	errPlain := errors.New("boom")

	tests := []struct {
		name       string
		accept     string
		handler    FallibleHandler
		wantStatus int
		wantBody   string
		wantErr    error
	}{
		{
			name: "Success passes the buffered response through",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				w.Header().Set("X-Test", "yes")
				w.WriteHeader(http.StatusCreated)
				_, err := w.Write([]byte(`{"status":"success"}`))

				return err
			},
			wantStatus: http.StatusCreated,
			wantBody:   `{"status":"success"}`,
		},
		{
			name: "Plain error becomes a 500",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				_, _ = w.Write([]byte("partial"))

				return errPlain
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error"}`,
			wantErr:    errPlain,
		},
		{
			name:   "Plain error is localized",
			accept: "zh-CN",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				return errPlain
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"服务器内部错误"}`,
			wantErr:    errPlain,
		},
		{
			name:   "User error keeps its status and message",
			accept: "zh-CN",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				return i18n.MsgKey("Form session not found or expired").Error(r.Context(), http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"表单会话不存在或已过期"}`,
		},
		{
			name: "Error with an error status already written",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"upstream"}`))

				return errPlain
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"upstream"}`,
			wantErr:    errPlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := createTestRequest(t, tt.accept)
			rec := httptest.NewRecorder()

			CatchError(tt.handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())

			rc := request_context.FromRequest(req)
			assert.Equal(t, tt.wantStatus, rc.Status)

			if tt.wantErr != nil {
				require.ErrorIs(t, rc.Err, tt.wantErr)
			}
		})
	}
}

func TestCatchErrorUserErrorWithoutStatus(t *testing.T) {
	t.Parallel()

	req := createTestRequest(t, "")
	rec := httptest.NewRecorder()

	CatchError(func(w http.ResponseWriter, r *http.Request) error {
		return i18n.NewUserError(r.Context(), 0, "Invalid request body")
	}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
}
