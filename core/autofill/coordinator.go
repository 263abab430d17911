// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package autofill coordinates translation suggestions between the two fields
of a bilingual form pair, such as an event's English and Chinese names.

When the user leaves a field, the [Coordinator] waits for a short debounce
window and then asks its [Translator] for a translation of the text into the
paired field's language. The result is kept as a suggestion for the paired
field; the form shows it as placeholder text. Pressing Tab in an empty field
that has a suggestion writes the suggestion into the field.

Translation never fails from the coordinator's point of view. The worst case
is that no suggestion appears and the user types the value themselves.
*/
package autofill

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/newbee/autofill/core/langdetect"
)

// DefaultDebounce is the wait after a blur before translating.
const DefaultDebounce = 500 * time.Millisecond

// TabKey is the only key [Coordinator.HandleKeyDown] acts on.
const TabKey = "Tab"

// Translator translates text between the two languages.
//
// Implementations must not fail: when no translation is available they
// return the trimmed input. *translate.Resolver satisfies Translator.
type Translator interface {
	Translate(ctx context.Context, text string, from, to langdetect.Lang) string
}

// Options configures a [Coordinator].
type Options struct {
	Pairs      []FieldPair
	Fields     FieldAccess
	Translator Translator

	// Scheduler defaults to [TimerScheduler].
	Scheduler Scheduler

	// Debounce defaults to [DefaultDebounce].
	Debounce time.Duration

	// Defaults are written into an empty field on Tab when it has no suggestion.
	Defaults map[string]string

	// Context is passed to the Translator. It defaults to context.Background.
	Context context.Context
}

// KeyResult reports what [Coordinator.HandleKeyDown] did.
type KeyResult struct {
	// Filled is true when a value was written into the field. The caller
	// should suppress the default Tab navigation for this key press.
	Filled bool `json:"filled"`

	// Value is the value written into the field when Filled is true.
	Value string `json:"value,omitempty"`

	// Triggered is true when a translation for the paired field was started.
	Triggered bool `json:"triggered"`
}

// binding is one side of a pair as seen from a field.
type binding struct {
	pair    string
	english bool
}

func (b binding) langs() (from, to langdetect.Lang) {
	if b.english {
		return langdetect.English, langdetect.Chinese
	}

	return langdetect.Chinese, langdetect.English
}

// pendingBlur is a debounce timer for one field.
type pendingBlur struct {
	cancel func()
}

// Coordinator holds the suggestion state of one mounted form.
//
// All methods are safe for concurrent use. Translations run without holding
// the coordinator's lock, so independent fields translate in parallel.
type Coordinator struct {
	fields     FieldAccess
	translator Translator
	scheduler  Scheduler
	debounce   time.Duration
	defaults   map[string]string
	ctx        context.Context

	mu             sync.Mutex
	bindings       map[string]binding
	suggestions    map[string]string // target field -> suggested value
	lastTranslated map[string]string // source field -> value that produced its suggestion
	timers         map[string]*pendingBlur
	inFlight       int
	closed         bool
}

// New returns a Coordinator for opts.Pairs.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		fields:         opts.Fields,
		translator:     opts.Translator,
		scheduler:      opts.Scheduler,
		debounce:       opts.Debounce,
		defaults:       maps.Clone(opts.Defaults),
		ctx:            opts.Context,
		suggestions:    make(map[string]string),
		lastTranslated: make(map[string]string),
		timers:         make(map[string]*pendingBlur),
	}

	if c.fields == nil {
		c.fields = NewValues(nil)
	}

	if c.scheduler == nil {
		c.scheduler = TimerScheduler{}
	}

	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}

	if c.ctx == nil {
		c.ctx = context.Background()
	}

	c.Configure(opts.Pairs)

	return c
}

// Configure replaces the field pairs. Existing suggestions are kept.
//
// A field belongs to at most one pair: a pair naming a field that an earlier
// pair already uses is skipped.
func (c *Coordinator) Configure(pairs []FieldPair) {
	bindings := make(map[string]binding, 2*len(pairs))

	for _, p := range pairs {
		if p.English == "" || p.Chinese == "" || p.English == p.Chinese {
			continue
		}

		_, usedEnglish := bindings[p.English]
		_, usedChinese := bindings[p.Chinese]

		if usedEnglish || usedChinese {
			log.Debug().
				Str("sys", "autofill").
				Str("en", p.English).
				Str("zh", p.Chinese).
				Msg("Skipping pair with a field that is already paired")

			continue
		}

		bindings[p.English] = binding{pair: p.Chinese, english: true}
		bindings[p.Chinese] = binding{pair: p.English, english: false}
	}

	c.mu.Lock()
	c.bindings = bindings
	c.mu.Unlock()
}

// Pairs returns the configured pairs ordered by their English field.
func (c *Coordinator) Pairs() []FieldPair {
	c.mu.Lock()
	defer c.mu.Unlock()

	pairs := make([]FieldPair, 0, len(c.bindings)/2)

	for field, b := range c.bindings {
		if b.english {
			pairs = append(pairs, FieldPair{English: field, Chinese: b.pair})
		}
	}

	slices.SortFunc(pairs, func(a, b FieldPair) int { return strings.Compare(a.English, b.English) })

	return pairs
}

// HandleBlur restarts the debounce timer for field. When the timer fires
// without another blur on the same field, value is translated for the paired field.
func (c *Coordinator) HandleBlur(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if prev, ok := c.timers[field]; ok {
		prev.cancel()
	}

	pending := &pendingBlur{}
	pending.cancel = c.scheduler.Schedule(c.debounce, func() {
		c.mu.Lock()
		// A timer that was replaced may still fire if it could not be stopped in time.
		current := c.timers[field] == pending
		if current {
			delete(c.timers, field)
		}
		c.mu.Unlock()

		if current {
			c.trigger(field, value)
		}
	})

	c.timers[field] = pending
}

// HandleKeyDown reacts to Tab in field, whose current content is value.
//
// In order of priority:
//   - an empty field with a suggestion receives the suggestion, which is then discarded;
//   - an empty field with a configured default receives the default;
//   - a non-empty paired field whose partner is empty starts translating at once.
func (c *Coordinator) HandleKeyDown(field, value, key string) KeyResult {
	if key != TabKey {
		return KeyResult{}
	}

	empty := strings.TrimSpace(value) == ""

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return KeyResult{}
	}

	if suggestion, ok := c.suggestions[field]; ok && empty {
		delete(c.suggestions, field)
		c.mu.Unlock()

		c.fields.SetValue(field, suggestion)

		return KeyResult{Filled: true, Value: suggestion}
	}

	if def := c.defaults[field]; def != "" && empty {
		c.mu.Unlock()

		c.fields.SetValue(field, def)

		return KeyResult{Filled: true, Value: def}
	}

	b, paired := c.bindings[field]
	c.mu.Unlock()

	if !paired || empty {
		return KeyResult{}
	}

	if strings.TrimSpace(c.fields.Value(b.pair)) != "" {
		return KeyResult{}
	}

	// No debounce, but still off the caller's goroutine.
	c.scheduler.Schedule(0, func() { c.trigger(field, value) })

	return KeyResult{Triggered: true}
}

// HandleFocus is called when field gains focus. The pending suggestion is
// already shown as placeholder text, so nothing changes.
func (c *Coordinator) HandleFocus(field, value string) {}

// trigger translates value from field into a suggestion for its paired field.
func (c *Coordinator) trigger(field, value string) {
	c.mu.Lock()

	b, ok := c.bindings[field]
	if !ok || c.closed {
		c.mu.Unlock()

		return
	}

	if strings.TrimSpace(value) == "" {
		delete(c.suggestions, b.pair)
		c.mu.Unlock()

		return
	}

	if last, ok := c.lastTranslated[field]; ok && last == value {
		c.mu.Unlock()

		return
	}

	from, to := b.langs()

	// Text already in the target language was most likely typed into the wrong field.
	if langdetect.Detect(value) == to {
		c.mu.Unlock()

		log.Debug().
			Str("sys", "autofill").
			Str("field", field).
			Str("detected", string(to)).
			Msg("Skipping suggestion for text already in the target language")

		return
	}

	c.inFlight++
	c.mu.Unlock()

	translated := c.translate(value, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight--

	// An unchanged value is not a suggestion. The comparison is against the
	// value as typed, so padded input still yields its trimmed echo.
	if translated == "" || translated == value {
		return
	}

	c.lastTranslated[field] = value
	c.suggestions[b.pair] = translated
}

func (c *Coordinator) translate(value string, from, to langdetect.Lang) string {
	if c.translator == nil {
		return ""
	}

	return c.translator.Translate(c.ctx, value, from, to)
}

// Suggestions returns a copy of the pending suggestions keyed by target field.
func (c *Coordinator) Suggestions() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.suggestions)
}

// Suggestion returns the pending suggestion for field.
func (c *Coordinator) Suggestion(field string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.suggestions[field]

	return s, ok
}

// IsTranslating reports whether any translation is in flight.
func (c *Coordinator) IsTranslating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inFlight > 0
}

// ClearTranslation discards the suggestion for field.
func (c *Coordinator) ClearTranslation(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.suggestions, field)
}

// ClearAllTranslations discards all suggestions and forgets which values were translated,
// so the same text can be translated again.
func (c *Coordinator) ClearAllTranslations() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.suggestions)
	clear(c.lastTranslated)
}

// Close cancels every pending debounce timer. Timers that fire anyway and
// later key presses are ignored. Translations already in flight still complete.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	for field, pending := range c.timers {
		pending.cancel()
		delete(c.timers, field)
	}
}
