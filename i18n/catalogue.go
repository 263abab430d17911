// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/leonelquinteros/gotext"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// BaseLocale is the locale of the msgids themselves and the fallback for
// every request that matches nothing better.
const BaseLocale = "en"

var baseTag = language.Make(BaseLocale)

//go:embed po/*.po
var embedded embed.FS

// Logger is the logger used by package i18n.
var Logger = log.Logger

// catalogue is an immutable set of loaded locales. Index 0 is always the base locale.
type catalogue struct {
	tags    []language.Tag
	pos     []*gotext.Po // parallel to tags; nil for a base locale without a file
	matcher language.Matcher
}

// active is nil until Setup succeeds.
var active atomic.Pointer[catalogue]

// Setup loads the embedded catalogues. It may be called again to reload them.
func Setup() error {
	return setupFS(embedded)
}

// setupFS loads every po/<locale>.po in fsys. Locale names may use "_" or "-".
func setupFS(fsys fs.FS) error {
	Logger = log.With().Str("sys", "i18n").Logger()

	entries, err := fs.ReadDir(fsys, "po")
	if err != nil {
		return fmt.Errorf("failed to read po directory: %w", err)
	}

	cat := &catalogue{
		tags: []language.Tag{baseTag},
		pos:  []*gotext.Po{nil},
	}

	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".po")
		if entry.IsDir() || !ok {
			continue
		}

		tag, err := language.Parse(strings.ReplaceAll(name, "_", "-"))
		if err != nil {
			Logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping catalogue with an invalid locale name")

			continue
		}

		data, err := fs.ReadFile(fsys, path.Join("po", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read catalogue %s: %w", entry.Name(), err)
		}

		po := gotext.NewPo()
		po.Parse(data)

		cat.add(tag, po)

		Logger.Debug().Str("locale", tag.String()).Msg("Loaded catalogue")
	}

	cat.matcher = language.NewMatcher(cat.tags)
	active.Store(cat)

	Logger.Info().Int("locales", len(cat.tags)).Msg("Initialized i18n")

	return nil
}

// add registers po for tag. A catalogue for the base locale replaces the
// placeholder; other locales are kept sorted after it.
func (c *catalogue) add(tag language.Tag, po *gotext.Po) {
	if tag == baseTag {
		c.pos[0] = po

		return
	}

	i, _ := slices.BinarySearchFunc(c.tags[1:], tag, func(a, b language.Tag) int {
		return strings.Compare(a.String(), b.String())
	})

	c.tags = slices.Insert(c.tags, i+1, tag)
	c.pos = slices.Insert(c.pos, i+1, po)
}

// lookup returns the catalogue entry best matching t, and the matched locale.
func (c *catalogue) lookup(t language.Tag) (*gotext.Po, language.Tag) {
	// The index is used rather than the returned tag, which may carry extensions.
	_, i := language.MatchStrings(c.matcher, t.String())

	return c.pos[i], c.tags[i]
}

// Languages returns the loaded locales, base locale first. It panics before Setup.
func Languages() []language.Tag {
	cat := active.Load()
	if cat == nil {
		panic("i18n: Setup must be called before Languages")
	}

	return slices.Clone(cat.tags)
}
