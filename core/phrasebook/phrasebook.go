// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package phrasebook provides a fixed bilingual dictionary of phrases that
appear often on club forms (park names, run types, distances, status words).

Lookups against the phrasebook are consulted before any cached or network
translation, so these phrases always translate the same way and never use
the translation quota.
*/
package phrasebook

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"codeberg.org/newbee/autofill/core/langdetect"
)

//go:embed data/common_phrases.yaml
var commonPhrases []byte

var (
	ErrInvalidPhrase = errors.New("phrase must have both an English and a Chinese text")
	errDecode        = errors.New("failed to decode phrasebook")
)

// Phrase is a single English/Chinese pair.
type Phrase struct {
	English string `yaml:"en"`
	Chinese string `yaml:"zh"`
}

// Group is a named run of phrases, as laid out in the data file.
type Group struct {
	Category string   `yaml:"category"`
	Phrases  []Phrase `yaml:"phrases"`
}

// Phrasebook is an ordered English/Chinese dictionary.
//
// A Phrasebook is read-only once built and is safe for concurrent use.
type Phrasebook struct {
	phrases []Phrase

	// byEnglish maps a lowercased English phrase to its index in phrases.
	byEnglish map[string]int

	// byChinese maps a Chinese phrase to the first index in phrases that uses it.
	byChinese map[string]int
}

// Default returns the phrasebook built from the embedded phrase list.
func Default() (*Phrasebook, error) {
	return Load(bytes.NewReader(commonPhrases))
}

// Load builds a phrasebook from YAML data read from r.
func Load(r io.Reader) (*Phrasebook, error) {
	p := &Phrasebook{}
	if err := p.extend(r); err != nil {
		return nil, err
	}

	return p, nil
}

// ExtendFromFile returns a copy of p with the phrases in the YAML file at path
// merged on top. A phrase whose English text already exists replaces the
// earlier entry in place.
func (p *Phrasebook) ExtendFromFile(path string) (*Phrasebook, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open phrasebook file: %w", err)
	}
	defer file.Close()

	out := &Phrasebook{phrases: make([]Phrase, len(p.phrases))}
	copy(out.phrases, p.phrases)

	if err := out.extend(file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return out, nil
}

func (p *Phrasebook) extend(r io.Reader) error {
	var groups []Group
	if err := yaml.NewDecoder(r).Decode(&groups); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errDecode, err)
	}

	byEnglish := make(map[string]int, len(p.phrases))
	for i, ph := range p.phrases {
		byEnglish[foldEnglish(ph.English)] = i
	}

	for _, g := range groups {
		for _, ph := range g.Phrases {
			ph.English = strings.TrimSpace(ph.English)
			ph.Chinese = strings.TrimSpace(ph.Chinese)

			if ph.English == "" || ph.Chinese == "" {
				return fmt.Errorf("%w (category %q)", ErrInvalidPhrase, g.Category)
			}

			key := foldEnglish(ph.English)
			if i, ok := byEnglish[key]; ok {
				p.phrases[i] = ph

				continue
			}

			byEnglish[key] = len(p.phrases)
			p.phrases = append(p.phrases, ph)
		}
	}

	p.byEnglish = byEnglish
	p.byChinese = make(map[string]int, len(p.phrases))

	for i, ph := range p.phrases {
		if _, ok := p.byChinese[ph.Chinese]; !ok {
			p.byChinese[ph.Chinese] = i
		}
	}

	return nil
}

// Lookup returns the translation of text into the language to.
//
// Text is trimmed before matching. English phrases match case-insensitively
// and Chinese phrases match exactly. The boolean reports whether a phrase was found.
func (p *Phrasebook) Lookup(text string, to langdetect.Lang) (string, bool) {
	if p == nil {
		return "", false
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	switch to {
	case langdetect.Chinese:
		if i, ok := p.byEnglish[foldEnglish(trimmed)]; ok {
			return p.phrases[i].Chinese, true
		}
	case langdetect.English:
		if i, ok := p.byChinese[trimmed]; ok {
			return p.phrases[i].English, true
		}
	}

	return "", false
}

// Len returns the number of phrases.
func (p *Phrasebook) Len() int {
	if p == nil {
		return 0
	}

	return len(p.phrases)
}

// Phrases returns a copy of the phrases in order.
func (p *Phrasebook) Phrases() []Phrase {
	if p == nil {
		return nil
	}

	out := make([]Phrase, len(p.phrases))
	copy(out, p.phrases)

	return out
}

func foldEnglish(s string) string {
	return strings.ToLower(s)
}
