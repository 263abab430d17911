// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package i18n localizes the messages the API shows to users.

Messages are identified by their English text. Catalogues in po/ translate
them; English needs no catalogue and Simplified Chinese is in po/zh-CN.po.

	msgMissingText = i18n.MsgKey("Missing text parameter")

	return msgMissingText.Error(r.Context(), http.StatusBadRequest)

Placeholders use text/template syntax and are filled from name, value pairs:

	i18n.Tr(ctx, "Unsupported language: {{.Lang}}", "Lang", raw)

The locale is chosen per request by [WithRequest]. After adding messages, run

	go run ./cmd/i18n_extract -check i18n/po/zh-CN.po

to refresh the template and list untranslated messages.
*/
package i18n
