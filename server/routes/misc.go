// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"

	"codeberg.org/newbee/autofill/core/translate"
	"codeberg.org/newbee/autofill/server/utils"
)

// Healthz serves GET /healthz.
func Healthz(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := w.Write([]byte("ok"))

	return err
}

// NotFound answers every request no other route matched.
func NotFound(_ http.ResponseWriter, r *http.Request) error {
	return msgNotFound.Error(r.Context(), http.StatusNotFound)
}

type statsResponse struct {
	Sessions        int                  `json:"sessions"`
	Cache           translate.CacheStats `json:"cache"`
	LimitedNetworks int                  `json:"limitedNetworks"`
}

// Stats serves GET /debug/stats in development mode.
func (api *API) Stats(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, http.StatusOK, statsResponse{
		Sessions:        api.Sessions.Len(),
		Cache:           translate.StatsOf(api.Cache),
		LimitedNetworks: api.Limiter.Len(),
	})
}
