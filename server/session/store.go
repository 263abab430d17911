// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package session keeps one auto-fill coordinator per mounted form.

A browser form calls [Store.Create] when it mounts and receives a signed token.
Every later event names the form by that token. Sessions idle for longer than
the idle timeout are closed by [Store.Cleanup], which the server runs on an interval.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/newbee/autofill/core/authenticated"
	"codeberg.org/newbee/autofill/core/autofill"
	"codeberg.org/newbee/autofill/core/idgen"
)

// Token subject and claim name for form session tokens.
const (
	tokenSubject = "form session"
	tokenClaim   = "sid"
)

// Defaults for zero-valued [Options] fields.
const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultTokenTTL    = 12 * time.Hour
)

var (
	ErrNotFound        = errors.New("form session not found")
	ErrTooManySessions = errors.New("too many open form sessions")
	ErrInvalidPair     = errors.New("a field pair must name two different fields")
)

var timeNow = time.Now // Wrapper for time.Now, which allows us to mock it in tests.

// Options configures a [Store].
type Options struct {
	Validator  *authenticated.Validator
	Translator autofill.Translator

	// Scheduler is passed to every coordinator. Nil uses real timers.
	Scheduler autofill.Scheduler

	Debounce    time.Duration
	IdleTimeout time.Duration
	TokenTTL    time.Duration

	// MaxSessions caps the number of open sessions. Zero means no cap.
	MaxSessions int
}

// Session is a mounted form.
type Session struct {
	ID          string
	Coordinator *autofill.Coordinator
	Values      *autofill.Values

	cancel context.CancelFunc

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return now.Sub(s.lastUsed)
}

// close tears the session down. In-flight translations see a cancelled context.
func (s *Session) close() {
	s.Coordinator.Close()
	s.cancel()
}

// Store holds the open form sessions. It is safe for concurrent use.
type Store struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty Store.
func NewStore(opts Options) *Store {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}

	return &Store{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create mounts a form with the given pairs, Tab defaults and initial field values.
// It returns the session and the token naming it.
func (st *Store) Create(pairs []autofill.FieldPair, defaults, values map[string]string) (*Session, string, error) {
	seen := make(map[string]struct{}, 2*len(pairs))

	for _, p := range pairs {
		if p.English == "" || p.Chinese == "" || p.English == p.Chinese {
			return nil, "", fmt.Errorf("%w: %q, %q", ErrInvalidPair, p.English, p.Chinese)
		}

		for _, field := range []string{p.English, p.Chinese} {
			if _, dup := seen[field]; dup {
				return nil, "", fmt.Errorf("%w: %q is in more than one pair", ErrInvalidPair, field)
			}

			seen[field] = struct{}{}
		}
	}

	id := idgen.Session()

	token, err := st.opts.Validator.Sign(tokenSubject, map[string]string{tokenClaim: id}, st.opts.TokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign form session token: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.opts.MaxSessions > 0 && len(st.sessions) >= st.opts.MaxSessions {
		return nil, "", ErrTooManySessions
	}

	ctx, cancel := context.WithCancel(context.Background())
	fields := autofill.NewValues(values)

	sess := &Session{
		ID:     id,
		Values: fields,
		Coordinator: autofill.New(autofill.Options{
			Pairs:      pairs,
			Fields:     fields,
			Translator: st.opts.Translator,
			Scheduler:  st.opts.Scheduler,
			Debounce:   st.opts.Debounce,
			Defaults:   defaults,
			Context:    ctx,
		}),
		cancel:   cancel,
		lastUsed: timeNow(),
	}

	st.sessions[id] = sess

	log.Debug().
		Str("sys", "session").
		Str("session", id).
		Int("pairs", len(pairs)).
		Msg("Form session created")

	return sess, token, nil
}

// Lookup returns the session named by token and marks it as used.
func (st *Store) Lookup(token string) (*Session, error) {
	id, err := st.opts.Validator.Parse(tokenSubject, token, tokenClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	sess.touch(timeNow())

	return sess, nil
}

// Remove closes and forgets the session with id. It reports whether the session existed.
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		sess.close()
	}

	return ok
}

// Cleanup closes sessions idle for longer than the idle timeout and returns how many were closed.
func (st *Store) Cleanup() int {
	now := timeNow()

	var expired []*Session

	st.mu.Lock()
	for id, sess := range st.sessions {
		if sess.idleSince(now) > st.opts.IdleTimeout {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}

	if len(expired) > 0 {
		log.Info().
			Str("sys", "session").
			Int("count", len(expired)).
			Msg("Closed idle form sessions")
	}

	return len(expired)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (st *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Cleanup()
		}
	}
}

// Close closes every session.
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}
