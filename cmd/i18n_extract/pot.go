// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/leonelquinteros/gotext"
)

const potHeader = `msgid ""
msgstr ""
"Project-Id-Version: autofill %s\n"
"POT-Creation-Date: %s\n"
"Language: en\n"
"MIME-Version: 1.0\n"
"Content-Type: text/plain; charset=UTF-8\n"
"Content-Transfer-Encoding: 8bit\n"
`

// writePOT writes a gettext template for refs, msgids in sorted order.
// References to the same line are listed once.
func writePOT(b *strings.Builder, refs map[string][]ref, version string, now time.Time) {
	fmt.Fprintf(b, potHeader, version, now.Format("2006-01-02 15:04+0000"))

	for _, msgid := range slices.Sorted(maps.Keys(refs)) {
		rs := slices.SortedFunc(slices.Values(refs[msgid]), func(a, b ref) int {
			return cmp.Or(strings.Compare(a.file, b.file), cmp.Compare(a.line, b.line))
		})

		b.WriteString("\n#:")

		for _, r := range slices.Compact(rs) {
			fmt.Fprintf(b, " %s:%d", r.file, r.line)
		}

		fmt.Fprintf(b, "\nmsgid %q\nmsgstr \"\"\n", msgid)
	}
}

// missingTranslations returns, sorted, the msgids in refs that the catalogue in data does not translate.
func missingTranslations(data []byte, refs map[string][]ref) []string {
	po := gotext.NewPo()
	po.Parse(data)

	var missing []string

	for _, msgid := range slices.Sorted(maps.Keys(refs)) {
		if !po.IsTranslated(msgid) {
			missing = append(missing, msgid)
		}
	}

	return missing
}
