// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"
	"slices"
	"strings"

	"codeberg.org/newbee/autofill/core/autofill"
	"codeberg.org/newbee/autofill/server/session"
	"codeberg.org/newbee/autofill/server/utils"
)

type createFormRequest struct {
	// Pairs lists [English field, Chinese field] tuples.
	Pairs    [][2]string       `json:"pairs" validate:"dive,dive,required"`
	Defaults map[string]string `json:"defaults,omitempty" validate:"dive,keys,required,endkeys"`
	Values   map[string]string `json:"values,omitempty" validate:"dive,keys,required,endkeys"`
}

type createFormResponse struct {
	Token       string            `json:"token"`
	Suggestions map[string]string `json:"suggestions"`
}

// fieldEvent is the body of blur, keydown and focus events. Values carries the
// form's current field values, which are merged before the event is handled.
type fieldEvent struct {
	Field  string            `json:"field" validate:"required"`
	Value  string            `json:"value"`
	Key    string            `json:"key,omitempty" validate:"max=32"`
	Values map[string]string `json:"values,omitempty" validate:"dive,keys,required,endkeys"`
}

type formState struct {
	Pairs       [][2]string       `json:"pairs"`
	Suggestions map[string]string `json:"suggestions"`
	Translating bool              `json:"translating"`
	Values      map[string]string `json:"values"`
}

func stateOf(sess *session.Session) formState {
	configured := sess.Coordinator.Pairs()

	pairs := make([][2]string, 0, len(configured))
	for _, p := range configured {
		pairs = append(pairs, [2]string{p.English, p.Chinese})
	}

	return formState{
		Pairs:       pairs,
		Suggestions: sess.Coordinator.Suggestions(),
		Translating: sess.Coordinator.IsTranslating(),
		Values:      sess.Values.Snapshot(),
	}
}

// CreateForm serves POST /api/forms.
func (api *API) CreateForm(w http.ResponseWriter, r *http.Request) error {
	var req createFormRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return msgInvalidBody.Error(r.Context(), http.StatusBadRequest)
	}

	if err := utils.Validate(&req); err != nil {
		if slices.ContainsFunc(utils.InvalidFields(err), func(f string) bool { return strings.HasPrefix(f, "Pairs") }) {
			return msgInvalidPair.Error(r.Context(), http.StatusBadRequest)
		}

		return msgInvalidBody.Error(r.Context(), http.StatusBadRequest)
	}

	pairs := make([]autofill.FieldPair, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		pairs = append(pairs, autofill.FieldPair{
			English: strings.TrimSpace(p[0]),
			Chinese: strings.TrimSpace(p[1]),
		})
	}

	sess, token, err := api.Sessions.Create(pairs, req.Defaults, req.Values)
	if err != nil {
		return sessionError(r, err)
	}

	return utils.WriteJSON(w, http.StatusCreated, createFormResponse{
		Token:       token,
		Suggestions: sess.Coordinator.Suggestions(),
	})
}

// FormState serves GET /api/forms/{token}.
func (api *API) FormState(w http.ResponseWriter, r *http.Request) error {
	sess, err := api.lookup(r)
	if err != nil {
		return err
	}

	return utils.WriteJSON(w, http.StatusOK, stateOf(sess))
}

// Blur serves POST /api/forms/{token}/blur. The translation runs after the
// debounce window; poll FormState for the suggestion.
func (api *API) Blur(w http.ResponseWriter, r *http.Request) error {
	sess, event, err := api.fieldEvent(w, r)
	if err != nil {
		return err
	}

	sess.Coordinator.HandleBlur(event.Field, event.Value)

	return utils.WriteJSON(w, http.StatusAccepted, stateOf(sess))
}

// KeyDown serves POST /api/forms/{token}/keydown.
func (api *API) KeyDown(w http.ResponseWriter, r *http.Request) error {
	sess, event, err := api.fieldEvent(w, r)
	if err != nil {
		return err
	}

	result := sess.Coordinator.HandleKeyDown(event.Field, event.Value, event.Key)

	return utils.WriteJSON(w, http.StatusOK, result)
}

// Focus serves POST /api/forms/{token}/focus.
func (api *API) Focus(w http.ResponseWriter, r *http.Request) error {
	sess, event, err := api.fieldEvent(w, r)
	if err != nil {
		return err
	}

	sess.Coordinator.HandleFocus(event.Field, event.Value)

	return utils.WriteJSON(w, http.StatusOK, stateOf(sess))
}

// ClearSuggestion serves DELETE /api/forms/{token}/suggestions/{field}.
func (api *API) ClearSuggestion(w http.ResponseWriter, r *http.Request) error {
	sess, err := api.lookup(r)
	if err != nil {
		return err
	}

	field := utils.GetPathVar(r, "field")
	if field == "" {
		return msgMissingField.Error(r.Context(), http.StatusBadRequest)
	}

	sess.Coordinator.ClearTranslation(field)

	return utils.WriteJSON(w, http.StatusOK, stateOf(sess))
}

// ClearSuggestions serves DELETE /api/forms/{token}/suggestions.
func (api *API) ClearSuggestions(w http.ResponseWriter, r *http.Request) error {
	sess, err := api.lookup(r)
	if err != nil {
		return err
	}

	sess.Coordinator.ClearAllTranslations()

	return utils.WriteJSON(w, http.StatusOK, stateOf(sess))
}

// CloseForm serves DELETE /api/forms/{token}, unmounting the form.
func (api *API) CloseForm(w http.ResponseWriter, r *http.Request) error {
	sess, err := api.lookup(r)
	if err != nil {
		return err
	}

	api.Sessions.Remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)

	return nil
}

func (api *API) lookup(r *http.Request) (*session.Session, error) {
	sess, err := api.Sessions.Lookup(utils.GetPathVar(r, "token"))
	if err != nil {
		return nil, sessionError(r, err)
	}

	return sess, nil
}

// fieldEvent looks up the session, decodes the event and merges the reported values.
func (api *API) fieldEvent(w http.ResponseWriter, r *http.Request) (*session.Session, fieldEvent, error) {
	sess, err := api.lookup(r)
	if err != nil {
		return nil, fieldEvent{}, err
	}

	var event fieldEvent
	if err := utils.DecodeJSON(w, r, &event); err != nil {
		return nil, fieldEvent{}, msgInvalidBody.Error(r.Context(), http.StatusBadRequest)
	}

	if err := utils.Validate(&event); err != nil {
		if slices.Contains(utils.InvalidFields(err), "Field") {
			return nil, fieldEvent{}, msgMissingField.Error(r.Context(), http.StatusBadRequest)
		}

		return nil, fieldEvent{}, msgInvalidBody.Error(r.Context(), http.StatusBadRequest)
	}

	sess.Values.Merge(event.Values)
	sess.Values.SetValue(event.Field, event.Value)

	return sess, event, nil
}
