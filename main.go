// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Autofill serves bilingual English/Chinese auto-fill suggestions for club admin forms.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	config "codeberg.org/newbee/autofill/configs"
	"codeberg.org/newbee/autofill/core/audit"
	"codeberg.org/newbee/autofill/core/phrasebook"
	"codeberg.org/newbee/autofill/core/requests"
	"codeberg.org/newbee/autofill/core/translate"
	"codeberg.org/newbee/autofill/i18n"
	"codeberg.org/newbee/autofill/server/middleware/limiter"
	"codeberg.org/newbee/autofill/server/router"
	"codeberg.org/newbee/autofill/server/routes"
	"codeberg.org/newbee/autofill/server/session"
)

// http.Server timeouts (gosec G112). Batch requests may wait on the
// translator's rate limit, so responses have no write timeout.
const (
	readHeaderTimeout = 15 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 30 * time.Second

	shutdownGrace = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

// run loads the configuration, serves until SIGINT or SIGTERM and then
// drains open connections.
func run() error {
	audit.SetDefaultLogger()

	if err := config.Global.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := i18n.Setup(); err != nil {
		return fmt.Errorf("failed to initialize i18n engine: %w", err)
	}

	log.Info().Strs("languages", languageNames()).Msg("Loaded message catalogues")

	cache, err := newCache()
	if err != nil {
		return err
	}

	if closer, ok := cache.(io.Closer); ok {
		defer closer.Close()
	}

	resolver, err := newResolver(cache)
	if err != nil {
		return err
	}

	sessions := newSessionStore(resolver)
	defer sessions.Close()

	lim := newLimiter()

	server := &http.Server{
		Handler: router.New(&routes.API{
			Translator:    resolver,
			Sessions:      sessions,
			Cache:         cache,
			Limiter:       lim,
			BatchWorkers:  config.Global.Translator.BatchWorkers,
			BatchMaxItems: config.Global.Translator.BatchMaxItems,
		}, lim),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	listener, err := listen()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		sessions.RunCleanup(ctx, config.Global.Session.CleanupInterval)

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shut down: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server exited gracefully")

	return nil
}

func languageNames() []string {
	tags := i18n.Languages()
	names := make([]string, len(tags))

	for i, t := range tags {
		names[i] = t.String()
	}

	return names
}

// newResolver builds the translation chain: phrasebook, then cache, then MyMemory.
func newResolver(cache translate.Cache) (*translate.Resolver, error) {
	book, err := phrasebook.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load phrasebook: %w", err)
	}

	if extra := config.Global.Phrasebook.ExtraFile; extra != "" {
		if book, err = book.ExtendFromFile(extra); err != nil {
			return nil, fmt.Errorf("failed to load extra phrases: %w", err)
		}
	}

	log.Info().Int("phrases", book.Len()).Msg("Loaded phrasebook")

	tc := config.Global.Translator
	client := requests.NewClient(
		requests.WithHTTPClient(requests.NewHTTPClient(tc.Timeout)),
		requests.WithRateLimit(tc.RatePerSecond, tc.Burst),
		requests.WithUserAgent(tc.UserAgent),
	)

	return translate.NewResolver(
		translate.NewMyMemory(client, tc.BaseURL, tc.ContactEmail),
		translate.WithPhrasebook(book),
		translate.WithCache(cache),
	), nil
}

// newCache returns the SQLite cache when cache.path is set, an LRU when
// cache.size is set, and otherwise an unbounded in-memory cache.
func newCache() (translate.Cache, error) {
	cc := config.Global.Cache

	switch {
	case cc.Path != "":
		cache, err := translate.NewSQLiteCache(cc.Path)
		if err != nil {
			return nil, err
		}

		log.Info().Str("path", cc.Path).Int("entries", cache.Len()).Msg("Opened persistent translation cache")

		return cache, nil
	case cc.Size > 0:
		cache, err := translate.NewLRUCache(cc.Size, cc.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create translation cache: %w", err)
		}

		return cache, nil
	default:
		return translate.NewMemoryCache(), nil
	}
}

func newSessionStore(t *translate.Resolver) *session.Store {
	return session.NewStore(session.Options{
		Validator:   &config.PasetoValidator,
		Translator:  t,
		Debounce:    config.Global.Autofill.Debounce,
		IdleTimeout: config.Global.Session.IdleTimeout,
		TokenTTL:    config.Global.Session.TokenTTL,
		MaxSessions: config.Global.Session.MaxSessions,
	})
}

// newLimiter returns nil when inbound rate limiting is disabled.
func newLimiter() *limiter.Limiter {
	lc := config.Global.Limiter
	if !lc.Enabled {
		return nil
	}

	return limiter.New(limiter.Config{
		Rate:       lc.Rate,
		Burst:      lc.Burst,
		IPv4Prefix: lc.IPv4Prefix,
		IPv6Prefix: lc.IPv6Prefix,
		Expiry:     lc.Expiry,
	})
}
