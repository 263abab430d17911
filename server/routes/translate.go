// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"codeberg.org/newbee/autofill/core/langdetect"
	"codeberg.org/newbee/autofill/server/utils"
)

type detectResponse struct {
	Lang langdetect.Lang `json:"lang"`
}

type translateResponse struct {
	Translation string          `json:"translation"`
	From        langdetect.Lang `json:"from"`
	To          langdetect.Lang `json:"to"`
}

type batchItem struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type batchRequest struct {
	Items []batchItem `json:"items"`
}

type batchResponse struct {
	Results []translateResponse `json:"results"`
}

// Detect serves GET /api/detect?text=.
func (api *API) Detect(w http.ResponseWriter, r *http.Request) error {
	if !r.URL.Query().Has("text") {
		return msgMissingText.Error(r.Context(), http.StatusBadRequest)
	}

	return utils.WriteJSON(w, http.StatusOK, detectResponse{
		Lang: langdetect.Detect(r.URL.Query().Get("text")),
	})
}

// Translate serves GET /api/translate?text=&from=&to=.
//
// Omitting both from and to detects the source language. Naming only one
// side implies the other language for the other side.
func (api *API) Translate(w http.ResponseWriter, r *http.Request) error {
	if !r.URL.Query().Has("text") {
		return msgMissingText.Error(r.Context(), http.StatusBadRequest)
	}

	item := batchItem{
		Text: r.URL.Query().Get("text"),
		From: utils.GetQueryParam(r, "from"),
		To:   utils.GetQueryParam(r, "to"),
	}

	from, to, err := resolveDirection(r, item)
	if err != nil {
		return err
	}

	return utils.WriteJSON(w, http.StatusOK, api.translateOne(r.Context(), item.Text, from, to))
}

// TranslateBatch serves POST /api/translate/batch. Results keep the order of the items.
func (api *API) TranslateBatch(w http.ResponseWriter, r *http.Request) error {
	var req batchRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return msgInvalidBody.Error(r.Context(), http.StatusBadRequest)
	}

	if limit := api.batchMaxItems(); len(req.Items) > limit {
		return msgBatchTooLarge.Error(r.Context(), http.StatusRequestEntityTooLarge, "Max", limit)
	}

	type direction struct{ from, to langdetect.Lang }

	directions := make([]direction, len(req.Items))

	for i, item := range req.Items {
		from, to, err := resolveDirection(r, item)
		if err != nil {
			return err
		}

		directions[i] = direction{from, to}
	}

	results := make([]translateResponse, len(req.Items))

	group, ctx := errgroup.WithContext(r.Context())
	group.SetLimit(api.batchWorkers())

	for i, item := range req.Items {
		group.Go(func() error {
			results[i] = api.translateOne(ctx, item.Text, directions[i].from, directions[i].to)

			return nil
		})
	}

	// Translation never fails, so there is no error to report.
	_ = group.Wait()

	return utils.WriteJSON(w, http.StatusOK, batchResponse{Results: results})
}

// translateOne translates text, detecting the direction when from is empty.
func (api *API) translateOne(ctx context.Context, text string, from, to langdetect.Lang) translateResponse {
	if from == "" {
		result := api.Translator.AutoTranslate(ctx, text)

		return translateResponse{
			Translation: result.Translation,
			From:        result.Detected,
			To:          result.Target,
		}
	}

	return translateResponse{
		Translation: api.Translator.Translate(ctx, text, from, to),
		From:        from,
		To:          to,
	}
}

// resolveDirection parses the from and to of item. Both empty means auto-detect
// and yields empty languages.
func resolveDirection(r *http.Request, item batchItem) (langdetect.Lang, langdetect.Lang, error) {
	switch {
	case item.From == "" && item.To == "":
		return "", "", nil
	case item.From == "":
		to, err := parseLang(r, item.To)
		if err != nil {
			return "", "", err
		}

		return to.Other(), to, nil
	case item.To == "":
		from, err := parseLang(r, item.From)
		if err != nil {
			return "", "", err
		}

		return from, from.Other(), nil
	}

	from, err := parseLang(r, item.From)
	if err != nil {
		return "", "", err
	}

	to, err := parseLang(r, item.To)
	if err != nil {
		return "", "", err
	}

	return from, to, nil
}
