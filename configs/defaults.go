// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "time"

const (
	defaultHost = "localhost"
	defaultPort = "8383"

	// Default translator request timeout in seconds.
	defaultTranslatorTimeoutSeconds = 10
	// Default debounce after a blur in milliseconds.
	defaultDebounceMs = 500
	// Default idle lifetime of a form session in minutes.
	defaultSessionIdleMinutes = 30
	// Default validity of a form session token in hours.
	defaultSessionTokenTTLHours = 12
	// Default interval between session sweeps in minutes.
	defaultSessionCleanupMinutes = 5
	// Default idle lifetime of a per-network limiter in minutes.
	defaultLimiterExpiryMinutes = 10
)

// DefaultTranslatorURL is the MyMemory translation endpoint.
const DefaultTranslatorURL = "https://api.mymemory.translated.net/get"

// SetDefaults populates the configuration with default values.
func (cfg *ServerConfig) SetDefaults() {
	cfg.Basic.Host = defaultHost
	cfg.Basic.Port = defaultPort

	cfg.Translator.BaseURL = DefaultTranslatorURL
	cfg.Translator.UserAgent = "autofill/" + BuildVersion
	cfg.Translator.Timeout = defaultTranslatorTimeoutSeconds * time.Second
	// MyMemory's anonymous quota is small; stay well below it.
	cfg.Translator.RatePerSecond = 2
	cfg.Translator.Burst = 5
	cfg.Translator.BatchWorkers = 4
	cfg.Translator.BatchMaxItems = 50

	cfg.Cache.Size = 0
	cfg.Cache.Compress = false

	cfg.Autofill.Debounce = defaultDebounceMs * time.Millisecond

	cfg.Session.IdleTimeout = defaultSessionIdleMinutes * time.Minute
	cfg.Session.TokenTTL = defaultSessionTokenTTLHours * time.Hour
	cfg.Session.CleanupInterval = defaultSessionCleanupMinutes * time.Minute
	cfg.Session.MaxSessions = 10000

	cfg.Limiter.Enabled = true
	cfg.Limiter.Rate = 5
	cfg.Limiter.Burst = 30
	cfg.Limiter.IPv4Prefix = 24
	cfg.Limiter.IPv6Prefix = 48
	cfg.Limiter.Expiry = defaultLimiterExpiryMinutes * time.Minute

	cfg.Log.Level = "info"
	cfg.Log.Outputs = []string{"/dev/stderr"}
	cfg.Log.Format = "console"

	cfg.Internationalization.StrictMissingKeys = false
}
