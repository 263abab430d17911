// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package audit

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetDefaultLogger logs human-readable lines to stderr until the configuration
// has been loaded.
func SetDefaultLogger() {
	log.Logger = log.Output(Console(os.Stderr))
}

// Console returns a zerolog console writer for f. Colour is used only when f
// is a terminal, and then span lines (sys=http) are condensed into one message.
func Console(f *os.File) io.Writer {
	color := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())

	w := zerolog.ConsoleWriter{Out: f, NoColor: !color, TimeFormat: time.DateTime}
	if color {
		w.FormatPrepare = condenseSpan
	}

	return w
}

var spanFields = []string{"sys", "method", "status_code", "url", "destination", "request_id"}

func condenseSpan(m map[string]any) error {
	if m["sys"] != "http" {
		return nil
	}

	m[zerolog.MessageFieldName] = fmt.Sprintf("[%v] %v %-6v %v", m["destination"], m["status_code"], m["method"], m["url"])

	for _, k := range spanFields {
		delete(m, k)
	}

	return nil
}
