// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"codeberg.org/newbee/autofill/core/authenticated"
)

// validation errors.
var (
	errUnixSocketWithHostPort       = errors.New("unix socket configured - cannot specify Host and Port simultaneously")
	errUnixSocketInvalidPermissions = errors.New("invalid Basic.UnixSocketPermissions value")
	errUnixSocketUserDoesNotExist   = errors.New("user does not exist")
	errUnixSocketGroupDoesNotExist  = errors.New("group does not exist")
	errPasetoSecretInvalid          = errors.New("basic.secret is not a valid paseto key")
	errInvalidTranslatorURL         = errors.New("translator.baseUrl must be an absolute http(s) URL")
	errInvalidTranslatorRate        = errors.New("translator.ratePerSecond and translator.burst must not be negative")
	errInvalidBatchLimits           = errors.New("translator.batchWorkers and translator.batchMaxItems must be positive")
	errInvalidCacheSize             = errors.New("cache.size must not be negative")
	errInvalidDebounce              = errors.New("autofill.debounce must be positive")
	errInvalidSessionTimeouts       = errors.New("session.idleTimeout, session.tokenTtl and session.cleanupInterval must be positive")
	errInvalidLimiterRate           = errors.New("limiter.rate and limiter.burst must be positive when the limiter is enabled")
	errInvalidIPv4Prefix            = errors.New("IPv4 prefix must be between 0 and 32")
	errInvalidIPv6Prefix            = errors.New("IPv6 prefix must be between 0 and 128")
	errInvalidLogLevel              = errors.New("log.logLevel must be one of debug, info, warn, error")
	errInvalidLogFormat             = errors.New("log.logFormat must be console or json")
)

var (
	fileModeOctalRegexp  = regexp.MustCompile(`^0?[0-7]{3}$`)
	fileModeStringRegexp = regexp.MustCompile(`^(?:[r-][w-][x-]){3}$`)
	digitsRegexp         = regexp.MustCompile(`^[0-9]+$`)
)

// validateAndSet validates the server configuration and populates some fields.
func (cfg *ServerConfig) validateAndSet() error {
	if err := cfg.validateListener(); err != nil {
		return err
	}

	if err := cfg.validateSecret(); err != nil {
		return err
	}

	parsed, err := url.Parse(cfg.Translator.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %q", errInvalidTranslatorURL, cfg.Translator.BaseURL)
	}

	if cfg.Translator.RatePerSecond < 0 || cfg.Translator.Burst < 0 {
		return errInvalidTranslatorRate
	}

	if cfg.Translator.BatchWorkers <= 0 || cfg.Translator.BatchMaxItems <= 0 {
		return errInvalidBatchLimits
	}

	if cfg.Cache.Size < 0 {
		return errInvalidCacheSize
	}

	if cfg.Autofill.Debounce <= 0 {
		return errInvalidDebounce
	}

	if cfg.Session.IdleTimeout <= 0 || cfg.Session.TokenTTL <= 0 || cfg.Session.CleanupInterval <= 0 {
		return errInvalidSessionTimeouts
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return errInvalidLogLevel
	}

	switch cfg.Log.Format {
	case "console", "json":
		// valid
	default:
		return errInvalidLogFormat
	}

	// Skip validating Limiter configuration if it's not enabled
	if !cfg.Limiter.Enabled {
		return nil
	}

	if cfg.Limiter.Rate <= 0 || cfg.Limiter.Burst <= 0 {
		return errInvalidLimiterRate
	}

	if cfg.Limiter.IPv4Prefix < 0 || cfg.Limiter.IPv4Prefix > 32 {
		return errInvalidIPv4Prefix
	}

	if cfg.Limiter.IPv6Prefix < 0 || cfg.Limiter.IPv6Prefix > 128 {
		return errInvalidIPv6Prefix
	}

	return nil
}

func (cfg *ServerConfig) validateListener() error {
	if cfg.Basic.UnixSocket == "" {
		// Set TCP defaults
		if cfg.Basic.Host == "" {
			cfg.Basic.Host = defaultHost
			log.Info().
				Str("host", cfg.Basic.Host).
				Msg("Binding to default host")
		}

		if cfg.Basic.Port == "" {
			cfg.Basic.Port = defaultPort
			log.Info().
				Str("port", cfg.Basic.Port).
				Msg("Using default port")
		}

		return nil
	}

	// Host and port still holding their defaults were not set by the user.
	if (cfg.Basic.Host != "" && cfg.Basic.Host != defaultHost) || (cfg.Basic.Port != "" && cfg.Basic.Port != defaultPort) {
		return errUnixSocketWithHostPort
	}

	cfg.Basic.Host = ""
	cfg.Basic.Port = ""

	// Handle unix socket permissions
	switch {
	case cfg.Basic.RawUnixSocketPermissions == "":
		cfg.Basic.UnixSocketPermissions = 0o666
	case fileModeOctalRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
		rawModeUint64, _ := strconv.ParseUint(cfg.Basic.RawUnixSocketPermissions, 8, 32)

		cfg.Basic.UnixSocketPermissions = os.FileMode(rawModeUint64)
	case fileModeStringRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
		mode := os.FileMode(0)

		for i, c := range cfg.Basic.RawUnixSocketPermissions {
			// If permission bit is set
			if c != '-' {
				// Set i-th bit from the end
				const bitsInByte = 8

				mode |= 1 << (bitsInByte - i)
			}
		}

		cfg.Basic.UnixSocketPermissions = mode
	default:
		return errUnixSocketInvalidPermissions
	}

	if cfg.Basic.UnixSocketUser != "" {
		lookup := user.Lookup
		if digitsRegexp.MatchString(cfg.Basic.UnixSocketUser) {
			lookup = user.LookupId
		}

		if _, err := lookup(cfg.Basic.UnixSocketUser); err != nil {
			return errUnixSocketUserDoesNotExist
		}
	}

	if cfg.Basic.UnixSocketGroup != "" {
		lookup := user.LookupGroup
		if digitsRegexp.MatchString(cfg.Basic.UnixSocketGroup) {
			lookup = user.LookupGroupId
		}

		if _, err := lookup(cfg.Basic.UnixSocketGroup); err != nil {
			return errUnixSocketGroupDoesNotExist
		}
	}

	return nil
}

// validateSecret loads basic.secret into PasetoValidator. Without a secret an
// ephemeral key is generated, so form sessions do not survive a restart.
func (cfg *ServerConfig) validateSecret() error {
	if cfg.Basic.PasetoSecret == "" {
		PasetoValidator.Generate()

		log.Warn().
			Msg("basic.secret is not set; using an ephemeral key. Form sessions will not survive a restart.")

		return nil
	}

	if err := PasetoValidator.LoadSecretKeyFromHex(cfg.Basic.PasetoSecret); err != nil {
		key := authenticated.NewSecretKeyHex()
		log.Error().Err(err).Msgf("Generated secret key (put this in config.yaml)\nbasic:\n  secret: \"%s\"", key)

		return errPasetoSecretInvalid
	}

	// remove key. no longer needed.
	cfg.Basic.PasetoSecret = ""

	return nil
}
