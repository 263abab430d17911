// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package translate resolves translations between English and Chinese.

A [Resolver] consults, in order, the phrasebook, its cache and a network
[Backend]. It never reports failure to the caller: when the backend cannot
translate, the trimmed input is returned unchanged and a warning is logged.
*/
package translate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codeberg.org/newbee/autofill/core/langdetect"
	"codeberg.org/newbee/autofill/core/phrasebook"
	"codeberg.org/newbee/autofill/core/requests"
)

// Backend translates text over the network.
type Backend interface {
	Translate(ctx context.Context, text string, from, to langdetect.Lang) (string, error)
}

// Result is the outcome of [Resolver.AutoTranslate].
type Result struct {
	Translation string          `json:"translation"`
	Detected    langdetect.Lang `json:"from"`
	Target      langdetect.Lang `json:"to"`
}

// Resolver combines the phrasebook, a cache and a backend.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	phrases *phrasebook.Phrasebook
	cache   Cache
	backend Backend
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPhrasebook sets the phrasebook consulted before the cache.
func WithPhrasebook(p *phrasebook.Phrasebook) Option {
	return func(r *Resolver) { r.phrases = p }
}

// WithCache replaces the default [MemoryCache].
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// NewResolver returns a Resolver that falls back to backend.
// A nil backend makes every uncached, unknown phrase echo its input.
func NewResolver(backend Backend, opts ...Option) *Resolver {
	r := &Resolver{backend: backend}

	for _, opt := range opts {
		opt(r)
	}

	if r.cache == nil {
		r.cache = NewMemoryCache()
	}

	return r
}

// Translate returns text translated from one language to the other.
//
// Whitespace-only text yields "". Otherwise the result is never empty: on
// any backend failure the trimmed text is returned. Successful results that
// differ from the input, ignoring case, are cached.
func (r *Resolver) Translate(ctx context.Context, text string, from, to langdetect.Lang) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	if phrase, ok := r.phrases.Lookup(trimmed, to); ok {
		return phrase
	}

	key := CacheKey(trimmed, from, to)
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	if r.backend == nil {
		return trimmed
	}

	translated, err := r.backend.Translate(ctx, trimmed, from, to)
	if err != nil {
		level := zerolog.WarnLevel
		// The form was closed or the server is shutting down.
		if requests.IsContextCanceled(err) {
			level = zerolog.DebugLevel
		}

		log.WithLevel(level).
			Err(err).
			Str("sys", "translate").
			Str("from", string(from)).
			Str("to", string(to)).
			Int("len", len(trimmed)).
			Msg("Translation failed, keeping original text")

		return trimmed
	}

	// An echo usually means the service did not know the phrase.
	// Leave it uncached so a later attempt can succeed.
	if strings.ToLower(translated) != strings.ToLower(trimmed) {
		r.cache.Set(key, translated)
	}

	return translated
}

// AutoTranslate detects the language of text and translates it to the other language.
func (r *Resolver) AutoTranslate(ctx context.Context, text string) Result {
	from := langdetect.Detect(text)
	to := from.Other()

	return Result{
		Translation: r.Translate(ctx, text, from, to),
		Detected:    from,
		Target:      to,
	}
}
