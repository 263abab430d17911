// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Command i18n_extract collects message ids passed to package i18n and writes
them to a gettext template. With -check it also reports message ids that a
catalogue does not translate yet.

	go run ./cmd/i18n_extract -o i18n/po/autofill.pot -check i18n/po/zh-CN.po
*/
package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/tools/go/packages"

	"codeberg.org/newbee/autofill/core/audit"
)

func main() {
	audit.SetDefaultLogger()

	outPath := flag.String("o", "i18n/po/autofill.pot", "output file")
	check := flag.String("check", "", "comma-separated .po catalogues to check for missing translations")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get working directory")
	}

	pkgs, err := packages.Load(&packages.Config{Mode: packages.LoadAllSyntax, Tests: false}, "./...")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load packages")
	}

	if packages.PrintErrors(pkgs) > 0 {
		log.Fatal().Msg("Failed to load packages due to errors")
	}

	refs := extractRefs(pkgs, findProjectRoot(wd))

	var b strings.Builder

	writePOT(&b, refs, detectVersion(), time.Now().UTC())

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}

	if err := os.WriteFile(*outPath, []byte(b.String()), 0o644); err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("Failed to write output file")
	}

	log.Info().Str("path", *outPath).Int("messages", len(refs)).Msg("Wrote template")

	if *check == "" {
		return
	}

	incomplete := false

	for _, path := range strings.Split(*check, ",") {
		data, err := os.ReadFile(strings.TrimSpace(path)) // #nosec G304 -- path comes from the command line
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read catalogue")
		}

		for _, msgid := range missingTranslations(data, refs) {
			incomplete = true

			log.Warn().Str("catalogue", path).Str("msgid", msgid).Msg("Missing translation")
		}
	}

	if incomplete {
		os.Exit(1)
	}
}
