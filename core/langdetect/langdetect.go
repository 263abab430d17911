// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package langdetect classifies short form input as English or Chinese.

Detection is a character-composition heuristic, not a statistical model:
text is Chinese when more than 30% of its non-whitespace runes fall in the
CJK Unified Ideographs block (U+4E00..U+9FFF). Everything else, including
empty input, is English.
*/
package langdetect

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Lang is one of the two languages handled by the bilingual forms.
type Lang string

const (
	English Lang = "en"
	Chinese Lang = "zh"
)

// chineseRatioThreshold is compared strictly: exactly 30% is still English.
const chineseRatioThreshold = 0.3

var ErrUnsupportedLang = errors.New("unsupported language")

// locales maps each Lang to the locale code expected by the translation service.
var locales = map[Lang]language.Tag{
	English: language.English,
	Chinese: language.MustParse("zh-CN"),
}

var (
	baseEnglish, _ = language.English.Base()
	baseChinese, _ = language.Chinese.Base()
)

// Detect reports the language of text.
func Detect(text string) Lang {
	var chinese, total int

	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}

		total++

		if isHan(r) {
			chinese++
		}
	}

	if total > 0 && float64(chinese)/float64(total) > chineseRatioThreshold {
		return Chinese
	}

	return English
}

// isHan reports whether r is in the CJK Unified Ideographs block.
func isHan(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// Other returns the opposite language of the pair.
func (l Lang) Other() Lang {
	if l == Chinese {
		return English
	}

	return Chinese
}

// Tag returns the region-qualified locale tag used on the wire, e.g. zh-CN.
func (l Lang) Tag() language.Tag {
	if t, ok := locales[l]; ok {
		return t
	}

	return language.Und
}

// Valid reports whether l is one of the supported languages.
func (l Lang) Valid() bool {
	_, ok := locales[l]

	return ok
}

func (l Lang) String() string {
	return string(l)
}

// Parse reduces a BCP 47 tag such as "zh-Hant-TW" or "en_US" to a Lang.
func Parse(s string) (Lang, error) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedLang, s, err)
	}

	base, _ := tag.Base()

	switch base {
	case baseEnglish:
		return English, nil
	case baseChinese:
		return Chinese, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLang, s)
	}
}
