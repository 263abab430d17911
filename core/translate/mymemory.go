// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"codeberg.org/newbee/autofill/core/langdetect"
)

// DefaultMyMemoryURL is the public MyMemory API.
const DefaultMyMemoryURL = "https://api.mymemory.translated.net"

var (
	ErrUnsuccessfulResponse = errors.New("translation service returned no translation")
	errInvalidJSON          = errors.New("response contained invalid JSON")
)

// Getter performs a GET request and returns the response body.
// *requests.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, headers http.Header) ([]byte, error)
}

// MyMemory is a Backend for the MyMemory translation API.
type MyMemory struct {
	client  Getter
	baseURL string

	// email is sent as the "de" parameter, which raises the free daily quota.
	email string
}

// NewMyMemory returns a MyMemory backend. An empty baseURL selects [DefaultMyMemoryURL].
func NewMyMemory(client Getter, baseURL, email string) *MyMemory {
	if baseURL == "" {
		baseURL = DefaultMyMemoryURL
	}

	return &MyMemory{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		email:   email,
	}
}

// Translate asks MyMemory for a translation of text.
func (m *MyMemory) Translate(ctx context.Context, text string, from, to langdetect.Lang) (string, error) {
	if !from.Valid() || !to.Valid() {
		return "", fmt.Errorf("%w: %s|%s", langdetect.ErrUnsupportedLang, from, to)
	}

	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", from.Tag().String()+"|"+to.Tag().String())

	if m.email != "" {
		query.Set("de", m.email)
	}

	body, err := m.client.Get(ctx, m.baseURL+"/get?"+query.Encode(), http.Header{
		"Accept": {"application/json"},
	})
	if err != nil {
		return "", fmt.Errorf("mymemory request failed: %w", err)
	}

	return parseMyMemoryResponse(body)
}

// parseMyMemoryResponse accepts a payload only when responseStatus is the
// number 200 and responseData.translatedText is a non-empty string.
func parseMyMemoryResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errInvalidJSON
	}

	result := gjson.ParseBytes(body)

	status := result.Get("responseStatus")
	translated := result.Get("responseData.translatedText")

	if status.Type != gjson.Number || status.Int() != http.StatusOK ||
		translated.Type != gjson.String || translated.String() == "" {
		details := result.Get("responseDetails").String()

		return "", fmt.Errorf("%w: status %s: %s", ErrUnsuccessfulResponse, status.Raw, details)
	}

	return translated.String(), nil
}
