// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/newbee/autofill/core/authenticated"
	"codeberg.org/newbee/autofill/core/autofill"
	"codeberg.org/newbee/autofill/core/phrasebook"
	"codeberg.org/newbee/autofill/core/translate"
	"codeberg.org/newbee/autofill/i18n"
	"codeberg.org/newbee/autofill/server/middleware"
	"codeberg.org/newbee/autofill/server/middleware/set_request_context"
	"codeberg.org/newbee/autofill/server/session"
)

const testDebounce = 100 * time.Millisecond

func TestMain(m *testing.M) {
	if err := i18n.Setup(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

type testServer struct {
	handler http.Handler
	clock   *autofill.ManualScheduler
	store   *session.Store
}

// newTestServer wires the handlers the way the router does, with a phrasebook-only resolver.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	book, err := phrasebook.Default()
	require.NoError(t, err)

	cache := translate.NewMemoryCache()
	resolver := translate.NewResolver(nil, translate.WithPhrasebook(book), translate.WithCache(cache))

	validator := &authenticated.Validator{}
	validator.Generate()

	clock := &autofill.ManualScheduler{}
	store := session.NewStore(session.Options{
		Validator:  validator,
		Translator: resolver,
		Scheduler:  clock,
		Debounce:   testDebounce,
	})

	api := &API{Translator: resolver, Sessions: store, Cache: cache, BatchMaxItems: 3}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/detect", middleware.CatchError(api.Detect))
	mux.HandleFunc("GET /api/translate", middleware.CatchError(api.Translate))
	mux.HandleFunc("POST /api/translate/batch", middleware.CatchError(api.TranslateBatch))
	mux.HandleFunc("POST /api/forms", middleware.CatchError(api.CreateForm))
	mux.HandleFunc("GET /api/forms/{token}", middleware.CatchError(api.FormState))
	mux.HandleFunc("DELETE /api/forms/{token}", middleware.CatchError(api.CloseForm))
	mux.HandleFunc("POST /api/forms/{token}/blur", middleware.CatchError(api.Blur))
	mux.HandleFunc("POST /api/forms/{token}/keydown", middleware.CatchError(api.KeyDown))
	mux.HandleFunc("POST /api/forms/{token}/focus", middleware.CatchError(api.Focus))
	mux.HandleFunc("DELETE /api/forms/{token}/suggestions", middleware.CatchError(api.ClearSuggestions))
	mux.HandleFunc("DELETE /api/forms/{token}/suggestions/{field}", middleware.CatchError(api.ClearSuggestion))
	mux.HandleFunc("GET /healthz", middleware.CatchError(Healthz))
	mux.HandleFunc("GET /debug/stats", middleware.CatchError(api.Stats))
	mux.HandleFunc("/", middleware.CatchError(NotFound))

	return &testServer{
		handler: middleware.Wrap(set_request_context.WithRequestContext, mux),
		clock:   clock,
		store:   store,
	}
}

func (ts *testServer) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func TestDetect(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/detect?text=%E4%B8%AD%E5%A4%AE%E5%85%AC%E5%9B%AD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lang":"zh"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/detect?text=", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lang":"en"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/detect", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing text parameter", decode[map[string]string](t, rec)["error"])
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   translateResponse
	}{
		{
			name:   "Explicit direction",
			target: "/api/translate?text=Central+Park&from=en&to=zh",
			want:   translateResponse{Translation: "中央公园", From: "en", To: "zh"},
		},
		{
			name:   "Auto-detected direction",
			target: "/api/translate?text=%E5%8D%8A%E7%A8%8B%E9%A9%AC%E6%8B%89%E6%9D%BE",
			want:   translateResponse{Translation: "Half Marathon", From: "zh", To: "en"},
		},
		{
			name:   "Only target given",
			target: "/api/translate?text=tempo+run&to=zh-CN",
			want:   translateResponse{Translation: "节奏跑", From: "en", To: "zh"},
		},
		{
			name:   "Unknown phrase echoes",
			target: "/api/translate?text=+Hill+Repeats+&from=en&to=zh",
			want:   translateResponse{Translation: "Hill Repeats", From: "en", To: "zh"},
		},
		{
			name:   "Whitespace yields empty",
			target: "/api/translate?text=+++&from=en&to=zh",
			want:   translateResponse{Translation: "", From: "en", To: "zh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := ts.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[translateResponse](t, rec))
		})
	}
}

func TestTranslateRejectsUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/translate?text=hello&from=fr&to=zh", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported language: fr", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodGet, "/api/translate?text=hello&from=fr&to=zh", "", "Accept-Language", "zh-CN")
	assert.Equal(t, "不支持的语言：fr", decode[map[string]string](t, rec)["error"])
}

func TestTranslateBatch(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	body := `{"items":[
		{"text":"Central Park","from":"en","to":"zh"},
		{"text":"半程马拉松"},
		{"text":"Unknown Trail","to":"zh"}
	]}`

	rec := ts.do(t, http.MethodPost, "/api/translate/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[batchResponse](t, rec)
	assert.Equal(t, []translateResponse{
		{Translation: "中央公园", From: "en", To: "zh"},
		{Translation: "Half Marathon", From: "zh", To: "en"},
		{Translation: "Unknown Trail", From: "en", To: "zh"},
	}, got.Results)
}

func TestTranslateBatchErrors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/translate/batch", `{"items":[{"text":"a"},{"text":"b"},{"text":"c"},{"text":"d"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "A batch may contain at most 3 items", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/translate/batch", `{"items":[{"text":"a","from":"de"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/translate/batch", `{"entries":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[map[string]string](t, rec)["error"])
}

func TestFormLifecycle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/forms",
		`{"pairs":[["location","chinese_location"],["name","chinese_name"]],"defaults":{"status":"Open"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[createFormResponse](t, rec)
	require.NotEmpty(t, created.Token)
	assert.Empty(t, created.Suggestions)

	base := "/api/forms/" + created.Token

	rec = ts.do(t, http.MethodPost, base+"/blur", `{"field":"location","value":"Central Park"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	ts.clock.Advance(testDebounce)

	rec = ts.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[formState](t, rec)
	assert.Equal(t, [][2]string{{"location", "chinese_location"}, {"name", "chinese_name"}}, state.Pairs)
	assert.Equal(t, map[string]string{"chinese_location": "中央公园"}, state.Suggestions)
	assert.False(t, state.Translating)
	assert.Equal(t, "Central Park", state.Values["location"])

	rec = ts.do(t, http.MethodPost, base+"/keydown", `{"field":"chinese_location","value":"","key":"Tab"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, autofill.KeyResult{Filled: true, Value: "中央公园"}, decode[autofill.KeyResult](t, rec))

	rec = ts.do(t, http.MethodPost, base+"/keydown", `{"field":"status","value":"","key":"Tab"}`)
	assert.Equal(t, autofill.KeyResult{Filled: true, Value: "Open"}, decode[autofill.KeyResult](t, rec))

	// Case B: Tab out of a filled source field whose partner is empty.
	rec = ts.do(t, http.MethodPost, base+"/keydown", `{"field":"name","value":"Tempo Run","key":"Tab"}`)
	assert.Equal(t, autofill.KeyResult{Triggered: true}, decode[autofill.KeyResult](t, rec))

	ts.clock.Advance(0)

	state = decode[formState](t, ts.do(t, http.MethodPost, base+"/focus", `{"field":"chinese_name","value":""}`))
	assert.Equal(t, "节奏跑", state.Suggestions["chinese_name"])
	assert.Equal(t, "中央公园", state.Values["chinese_location"])
	assert.Equal(t, "Open", state.Values["status"])

	state = decode[formState](t, ts.do(t, http.MethodDelete, base+"/suggestions/chinese_name", ""))
	assert.Empty(t, state.Suggestions)

	rec = ts.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, ts.store.Len())

	rec = ts.do(t, http.MethodGet, base, "", "Accept-Language", "zh-CN")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "表单会话不存在或已过期", decode[map[string]string](t, rec)["error"])
}

func TestClearSuggestions(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	created := decode[createFormResponse](t, ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name","chinese_name"]]}`))
	base := "/api/forms/" + created.Token

	ts.do(t, http.MethodPost, base+"/blur", `{"field":"name","value":"Half Marathon"}`)
	ts.clock.Advance(testDebounce)

	state := decode[formState](t, ts.do(t, http.MethodGet, base, ""))
	require.Len(t, state.Suggestions, 1)

	state = decode[formState](t, ts.do(t, http.MethodDelete, base+"/suggestions", ""))
	assert.Empty(t, state.Suggestions)
}

func TestFormErrors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name","name"]]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A field pair must name two different fields", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name",""]]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A field pair must name two different fields", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name","chinese_name"],["location","chinese_name"]]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A field pair must name two different fields", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name","chinese_name"]],"defaults":{"":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/forms/not-a-token/blur", `{"field":"name","value":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	created := decode[createFormResponse](t, ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name","chinese_name"]]}`))

	rec = ts.do(t, http.MethodPost, "/api/forms/"+created.Token+"/blur", `{"value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing field name", decode[map[string]string](t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/forms/"+created.Token+"/keydown", `{"field":"name","key":"`+strings.Repeat("k", 40)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[map[string]string](t, rec)["error"])
}

func TestHealthzAndNotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/nope", "", "Accept-Language", "zh-CN")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "未找到", decode[map[string]string](t, rec)["error"])
}

func TestStats(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["name","chinese_name"]]}`)
	ts.do(t, http.MethodPost, "/api/forms", `{"pairs":[["location","chinese_location"]]}`)

	rec := ts.do(t, http.MethodGet, "/debug/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":2,"cache":{"kind":"memory","len":0},"limitedNetworks":0}`, rec.Body.String())
}
