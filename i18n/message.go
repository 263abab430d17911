// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"strings"
	"sync"
	"text/template"

	config "codeberg.org/newbee/autofill/configs"
)

// MsgKey is a msgid: the English text of a message.
//
// Declare messages reused in several places once, as MsgKey("...") conversions,
// so cmd/i18n_extract can find them.
type MsgKey string

// Tr is [Tr] for s.
func (s MsgKey) Tr(ctx context.Context, kv ...any) string {
	return Tr(ctx, string(s), kv...)
}

// Error returns s as a [UserError] localized for ctx.
func (s MsgKey) Error(ctx context.Context, status int, kv ...any) *UserError {
	return NewUserError(ctx, status, string(s), kv...)
}

// UserError is an error whose message is localized and safe to show to the user.
type UserError struct {
	// Status is the HTTP status to report the error with.
	Status int

	message string
	msgid   string
}

// NewUserError returns a UserError with msgid translated for ctx.
func NewUserError(ctx context.Context, status int, msgid string, kv ...any) *UserError {
	return &UserError{Status: status, message: Tr(ctx, msgid, kv...), msgid: msgid}
}

func (e *UserError) Error() string { return e.message }

// MsgID returns the untranslated message.
func (e *UserError) MsgID() string { return e.msgid }

// Tr translates msgid into the locale carried by ctx.
//
// kv are alternating names and values for {{.Name}} placeholders in the
// message. An untranslated msgid is returned as is, or wrapped in ⟦ ⟧ and
// logged once when internationalization.strictMissingKeys is set.
func Tr(ctx context.Context, msgid string, kv ...any) string {
	text := msgid

	if cat := active.Load(); cat != nil {
		po, tag := cat.lookup(TagFrom(ctx))

		switch {
		case po != nil && po.IsTranslated(msgid):
			text = po.Get(msgid)
		case config.Global.Internationalization.StrictMissingKeys:
			warnMissing(tag.String(), msgid)

			text = "⟦" + msgid + "⟧"
		}
	}

	if len(kv) == 0 && !strings.Contains(text, "{{") {
		return text
	}

	return fill(text, kv)
}

var warnedMissing sync.Map // locale + "\x00" + msgid

func warnMissing(locale, msgid string) {
	if _, seen := warnedMissing.LoadOrStore(locale+"\x00"+msgid, struct{}{}); seen {
		return
	}

	Logger.Warn().
		Str("locale", locale).
		Str("msgid", msgid).
		Msg("Missing translation")
}

var templates sync.Map // message text -> *template.Template

// fill substitutes the named placeholders of text. A message that fails to
// render is logged and returned unfilled.
func fill(text string, kv []any) string {
	if len(kv)%2 != 0 {
		panic("i18n: placeholder arguments must be name, value pairs")
	}

	data := make(map[string]any, len(kv)/2)

	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic("i18n: placeholder names must be strings")
		}

		data[name] = kv[i+1]
	}

	cached, ok := templates.Load(text)
	if !ok {
		tmpl, err := template.New("").Option("missingkey=error").Parse(text)
		if err != nil {
			Logger.Error().Err(err).Str("text", text).Msg("Invalid message template")

			return text
		}

		cached, _ = templates.LoadOrStore(text, tmpl)
	}

	var sb strings.Builder
	if err := cached.(*template.Template).Execute(&sb, data); err != nil {
		Logger.Error().Err(err).Str("text", text).Msg("Failed to fill message template")

		return text
	}

	return sb.String()
}
