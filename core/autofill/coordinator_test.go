// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package autofill

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/newbee/autofill/core/langdetect"
)

type translateCall struct {
	text     string
	from, to langdetect.Lang
}

// fakeTranslator answers from a table, echoing unknown text like the real resolver does on failure.
type fakeTranslator struct {
	mu      sync.Mutex
	answers map[string]string
	calls   []translateCall

	// block, when set, holds every call until it is closed.
	block chan struct{}
}

func (f *fakeTranslator) Translate(_ context.Context, text string, from, to langdetect.Lang) string {
	f.mu.Lock()
	f.calls = append(f.calls, translateCall{text: text, from: from, to: to})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if out, ok := f.answers[strings.TrimSpace(text)]; ok {
		return out
	}

	return strings.TrimSpace(text)
}

func (f *fakeTranslator) Calls() []translateCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]translateCall(nil), f.calls...)
}

// recordingFields counts SetValue calls.
type recordingFields struct {
	*Values

	mu   sync.Mutex
	sets []string
}

func (r *recordingFields) SetValue(field, value string) {
	r.mu.Lock()
	r.sets = append(r.sets, field+"="+value)
	r.mu.Unlock()

	r.Values.SetValue(field, value)
}

type harness struct {
	c      *Coordinator
	clock  *ManualScheduler
	tr     *fakeTranslator
	fields *recordingFields
}

func newHarness(t *testing.T, answers map[string]string, pairs ...FieldPair) *harness {
	t.Helper()

	h := &harness{
		clock:  &ManualScheduler{},
		tr:     &fakeTranslator{answers: answers},
		fields: &recordingFields{Values: NewValues(nil)},
	}

	h.c = New(Options{
		Pairs:      pairs,
		Fields:     h.fields,
		Translator: h.tr,
		Scheduler:  h.clock,
	})
	t.Cleanup(h.c.Close)

	return h
}

var titlePair = FieldPair{English: "title", Chinese: "title_cn"}

func TestBlurTranslatesAfterDebounce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"}, titlePair)

	h.c.HandleBlur("title", "Hill Repeats")

	h.clock.Advance(DefaultDebounce - time.Millisecond)
	assert.Empty(t, h.tr.Calls(), "must not translate before the debounce window elapses")

	h.clock.Advance(time.Millisecond)
	require.Len(t, h.tr.Calls(), 1)
	assert.Equal(t, translateCall{text: "Hill Repeats", from: langdetect.English, to: langdetect.Chinese}, h.tr.Calls()[0])

	s, ok := h.c.Suggestion("title_cn")
	assert.True(t, ok)
	assert.Equal(t, "坡道重复跑", s)
	assert.False(t, h.c.IsTranslating())
}

func TestBlurChineseSideTranslatesToEnglish(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"坡道重复跑": "Hill repeats"}, titlePair)

	h.c.HandleBlur("title_cn", "坡道重复跑")
	h.clock.Advance(DefaultDebounce)

	require.Len(t, h.tr.Calls(), 1)
	assert.Equal(t, langdetect.Chinese, h.tr.Calls()[0].from)
	assert.Equal(t, langdetect.English, h.tr.Calls()[0].to)
	assert.Equal(t, map[string]string{"title": "Hill repeats"}, h.c.Suggestions())
}

func TestBlurDebounceCollapses(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.HandleBlur("title", "A")
	h.clock.Advance(200 * time.Millisecond)
	h.c.HandleBlur("title", "AB")
	h.clock.Advance(DefaultDebounce)
	h.clock.Advance(DefaultDebounce)

	calls := h.tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "AB", calls[0].text)
}

func TestBlurTimersAreIndependentPerField(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑", "Bridge loop": "桥环线"},
		titlePair, FieldPair{English: "location", Chinese: "chinese_location"})

	h.c.HandleBlur("title", "Hill Repeats")
	h.c.HandleBlur("location", "Bridge loop")
	h.clock.Advance(DefaultDebounce)

	assert.Len(t, h.tr.Calls(), 2)
	assert.Equal(t, map[string]string{"title_cn": "坡道重复跑", "chinese_location": "桥环线"}, h.c.Suggestions())
}

func TestCustomDebounce(t *testing.T) {
	t.Parallel()

	clock := &ManualScheduler{}
	tr := &fakeTranslator{answers: map[string]string{"Hill Repeats": "坡道重复跑"}}
	c := New(Options{Pairs: []FieldPair{titlePair}, Translator: tr, Scheduler: clock, Debounce: 2 * time.Second})
	defer c.Close()

	c.HandleBlur("title", "Hill Repeats")
	clock.Advance(DefaultDebounce)
	assert.Empty(t, tr.Calls())

	clock.Advance(2 * time.Second)
	assert.Len(t, tr.Calls(), 1)
}

func TestCrossDetectionGuard(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, FieldPair{English: "nameEn", Chinese: "nameZh"})

	h.c.HandleBlur("nameEn", "新蜂跑步俱乐部")
	h.clock.Advance(DefaultDebounce)

	assert.Empty(t, h.tr.Calls(), "resolver must not be invoked")
	assert.Empty(t, h.c.Suggestions())
}

func TestCrossDetectionGuardChineseField(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	// English typed into the Chinese field is not sent back to English.
	h.c.HandleBlur("title_cn", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	assert.Empty(t, h.tr.Calls())

	// Mostly Chinese text with some Latin characters is still translated.
	h.c.HandleBlur("title_cn", "5公里跑")
	h.clock.Advance(DefaultDebounce)
	assert.Len(t, h.tr.Calls(), 1)
}

func TestUnchangedValueIsNotRetranslated(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"}, titlePair)

	for range 3 {
		h.c.HandleBlur("title", "Hill Repeats")
		h.clock.Advance(DefaultDebounce)
	}

	assert.Len(t, h.tr.Calls(), 1)

	// A changed value is translated again.
	h.c.HandleBlur("title", "Hill Repeats x6")
	h.clock.Advance(DefaultDebounce)
	assert.Len(t, h.tr.Calls(), 2)
}

func TestEchoDoesNotSuppressRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.HandleBlur("title", "Bridge loop")
	h.clock.Advance(DefaultDebounce)
	h.c.HandleBlur("title", "Bridge loop")
	h.clock.Advance(DefaultDebounce)

	assert.Len(t, h.tr.Calls(), 2, "an echo is not recorded as translated")
	assert.Empty(t, h.c.Suggestions())
}

func TestErasingSourceClearsSuggestion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"}, titlePair)

	h.c.HandleBlur("title", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	require.NotEmpty(t, h.c.Suggestions())

	h.c.HandleBlur("title", "   ")
	h.clock.Advance(DefaultDebounce)

	assert.Empty(t, h.c.Suggestions())
	assert.Len(t, h.tr.Calls(), 1)
}

func TestUnpairedFieldIsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.HandleBlur("date", "2025-06-01")
	h.clock.Advance(DefaultDebounce)

	assert.Empty(t, h.tr.Calls())
	assert.Equal(t, KeyResult{}, h.c.HandleKeyDown("date", "2025-06-01", TabKey))
}

func TestTabConsumesSuggestion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.mu.Lock()
	h.c.suggestions["title_cn"] = "新活动"
	h.c.mu.Unlock()

	res := h.c.HandleKeyDown("title_cn", "", TabKey)

	assert.Equal(t, KeyResult{Filled: true, Value: "新活动"}, res)
	assert.Equal(t, []string{"title_cn=新活动"}, h.fields.sets)
	assert.Equal(t, "新活动", h.fields.Value("title_cn"))

	_, ok := h.c.Suggestion("title_cn")
	assert.False(t, ok, "consumed suggestion must be removed")

	// A second Tab has nothing left to consume.
	assert.False(t, h.c.HandleKeyDown("title_cn", "", TabKey).Filled)
	assert.Len(t, h.fields.sets, 1)
	assert.Zero(t, h.clock.Pending())
}

func TestTabDoesNotOverwriteContent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.mu.Lock()
	h.c.suggestions["title_cn"] = "新活动"
	h.c.mu.Unlock()

	h.fields.Values.SetValue("title", "New Event")

	res := h.c.HandleKeyDown("title_cn", "我的活动", TabKey)

	assert.False(t, res.Filled)
	assert.False(t, res.Triggered, "partner already has content")
	assert.Empty(t, h.fields.sets)

	_, ok := h.c.Suggestion("title_cn")
	assert.True(t, ok)
}

func TestOtherKeysAreIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.mu.Lock()
	h.c.suggestions["title_cn"] = "新活动"
	h.c.mu.Unlock()

	for _, key := range []string{"Enter", "tab", "a", ""} {
		assert.Equal(t, KeyResult{}, h.c.HandleKeyDown("title_cn", "", key))
	}

	assert.Empty(t, h.fields.sets)
}

func TestTabTriggersEagerly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"}, titlePair)

	res := h.c.HandleKeyDown("title", "Hill Repeats", TabKey)
	assert.Equal(t, KeyResult{Triggered: true}, res)

	// No debounce: due immediately.
	h.clock.Advance(0)

	require.Len(t, h.tr.Calls(), 1)

	// The user tabs into the Chinese field and accepts the suggestion.
	res = h.c.HandleKeyDown("title_cn", "", TabKey)
	assert.Equal(t, KeyResult{Filled: true, Value: "坡道重复跑"}, res)
}

func TestTabDoesNotTriggerWhenPartnerFilled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)
	h.fields.Values.SetValue("title_cn", "坡道")

	assert.Equal(t, KeyResult{}, h.c.HandleKeyDown("title", "Hill Repeats", TabKey))
	h.clock.Advance(0)
	assert.Empty(t, h.tr.Calls())
}

func TestTabFillsDefault(t *testing.T) {
	t.Parallel()

	clock := &ManualScheduler{}
	fields := NewValues(nil)
	c := New(Options{
		Pairs:      []FieldPair{{English: "name", Chinese: "chinese_name"}},
		Fields:     fields,
		Translator: &fakeTranslator{},
		Scheduler:  clock,
		Defaults:   map[string]string{"name": "New Event", "time": "8:00 AM"},
	})
	defer c.Close()

	assert.Equal(t, KeyResult{Filled: true, Value: "8:00 AM"}, c.HandleKeyDown("time", " ", TabKey))
	assert.Equal(t, "8:00 AM", fields.Value("time"))

	assert.Equal(t, KeyResult{}, c.HandleKeyDown("time", "9:00 AM", TabKey))

	// A pending suggestion wins over the default.
	c.mu.Lock()
	c.suggestions["name"] = "Group Run"
	c.mu.Unlock()

	assert.Equal(t, KeyResult{Filled: true, Value: "Group Run"}, c.HandleKeyDown("name", "", TabKey))
	assert.Equal(t, KeyResult{Filled: true, Value: "New Event"}, c.HandleKeyDown("name", "", TabKey))
}

func TestClearTranslations(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑", "Bridge loop": "桥环线"},
		titlePair, FieldPair{English: "location", Chinese: "chinese_location"})

	h.c.HandleBlur("title", "Hill Repeats")
	h.c.HandleBlur("location", "Bridge loop")
	h.clock.Advance(DefaultDebounce)

	h.c.ClearTranslation("title_cn")
	assert.Equal(t, map[string]string{"chinese_location": "桥环线"}, h.c.Suggestions())

	h.c.ClearAllTranslations()
	assert.Empty(t, h.c.Suggestions())

	// The last-translated memory is reset too, so the same value translates again.
	h.c.HandleBlur("title", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	assert.Len(t, h.tr.Calls(), 3)
}

func TestSuggestionsReturnsCopy(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"}, titlePair)

	h.c.HandleBlur("title", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)

	view := h.c.Suggestions()
	view["title_cn"] = "changed"
	delete(view, "title_cn")

	s, _ := h.c.Suggestion("title_cn")
	assert.Equal(t, "坡道重复跑", s)
}

func TestCloseCancelsTimers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.HandleBlur("title", "Hill Repeats")
	h.c.HandleKeyDown("title", "Hill Repeats", TabKey)
	require.Equal(t, 2, h.clock.Pending())

	h.c.Close()

	assert.Equal(t, 1, h.clock.Pending(), "debounce timer is cancelled")

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.tr.Calls(), "eager trigger after close is ignored")

	h.c.HandleBlur("title", "Hill Repeats")
	assert.Zero(t, h.clock.Pending())

	h.c.mu.Lock()
	h.c.suggestions["title_cn"] = "新活动"
	h.c.mu.Unlock()

	assert.Equal(t, KeyResult{}, h.c.HandleKeyDown("title_cn", "", TabKey))
}

func TestIsTranslatingWhileInFlight(t *testing.T) {
	t.Parallel()

	tr := &fakeTranslator{
		answers: map[string]string{"Hill Repeats": "坡道重复跑"},
		block:   make(chan struct{}),
	}
	c := New(Options{Pairs: []FieldPair{titlePair}, Translator: tr, Scheduler: TimerScheduler{}, Debounce: time.Millisecond})
	defer c.Close()

	c.HandleBlur("title", "Hill Repeats")

	require.Eventually(t, c.IsTranslating, time.Second, time.Millisecond)

	close(tr.block)

	require.Eventually(t, func() bool { return !c.IsTranslating() }, time.Second, time.Millisecond)

	s, ok := c.Suggestion("title_cn")
	assert.True(t, ok)
	assert.Equal(t, "坡道重复跑", s)
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"})

	h.c.HandleBlur("title", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	assert.Empty(t, h.tr.Calls(), "no pairs configured yet")

	h.c.Configure([]FieldPair{titlePair, {English: "x", Chinese: "x"}, {English: "", Chinese: "y"}})
	assert.Equal(t, []FieldPair{titlePair}, h.c.Pairs())

	h.c.HandleBlur("title", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	assert.Len(t, h.tr.Calls(), 1)
}

func TestConfigureFirstPairKeepsSharedField(t *testing.T) {
	t.Parallel()

	venuePair := FieldPair{English: "venue", Chinese: "title_cn"}
	h := newHarness(t, map[string]string{"Hill Repeats": "坡道重复跑"}, titlePair, venuePair,
		FieldPair{English: "location", Chinese: "location_cn"})

	assert.Equal(t, []FieldPair{{English: "location", Chinese: "location_cn"}, titlePair}, h.c.Pairs())

	h.c.HandleBlur("venue", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	assert.Empty(t, h.tr.Calls(), "the skipped pair must not translate")

	h.c.HandleBlur("title", "Hill Repeats")
	h.clock.Advance(DefaultDebounce)
	require.Len(t, h.tr.Calls(), 1)

	s, ok := h.c.Suggestion("title_cn")
	assert.True(t, ok)
	assert.Equal(t, "坡道重复跑", s)
}

func TestEchoComparedWithValueAsTyped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.HandleBlur("title", "Tuesday Night Hills")
	h.clock.Advance(DefaultDebounce)
	require.Len(t, h.tr.Calls(), 1)

	_, ok := h.c.Suggestion("title_cn")
	assert.False(t, ok, "an exact echo is not a suggestion")

	h.c.HandleBlur("title", "Tuesday Night Hills ")
	h.clock.Advance(DefaultDebounce)
	require.Len(t, h.tr.Calls(), 2)

	s, ok := h.c.Suggestion("title_cn")
	assert.True(t, ok, "the trimmed echo of padded input differs from the value as typed")
	assert.Equal(t, "Tuesday Night Hills", s)
}

func TestHandleFocusChangesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, titlePair)

	h.c.mu.Lock()
	h.c.suggestions["title_cn"] = "新活动"
	h.c.mu.Unlock()

	h.c.HandleFocus("title_cn", "")

	assert.Equal(t, map[string]string{"title_cn": "新活动"}, h.c.Suggestions())
	assert.Empty(t, h.fields.sets)
	assert.Zero(t, h.clock.Pending())
}
