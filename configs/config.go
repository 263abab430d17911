// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"codeberg.org/newbee/autofill/core/authenticated"
	"codeberg.org/newbee/autofill/core/idgen"
)

// Global exposes the server configuration.
var Global ServerConfig

// PasetoValidator signs and verifies form session tokens.
//
// It is populated from basic.secret during validation.
var PasetoValidator authenticated.Validator

// ServerConfig holds the application configuration.
type ServerConfig struct {
	Build buildInfo `yaml:"-"`

	Basic struct {
		Host                     string      `env:"AUTOFILL_HOST,overwrite" yaml:"host"`
		Port                     string      `env:"AUTOFILL_PORT,overwrite" yaml:"port"`
		UnixSocket               string      `env:"AUTOFILL_UNIXSOCKET" yaml:"unixSocket"`
		RawUnixSocketPermissions string      `env:"AUTOFILL_UNIXSOCKET_PERMISSIONS" yaml:"unixSocketPermissions"`
		UnixSocketPermissions    os.FileMode `yaml:"-"`
		UnixSocketUser           string      `env:"AUTOFILL_UNIXSOCKET_USER" yaml:"unixSocketUser"`
		UnixSocketGroup          string      `env:"AUTOFILL_UNIXSOCKET_GROUP" yaml:"unixSocketGroup"`
		// hex of a v4.public secret key
		PasetoSecret string `env:"AUTOFILL_SECRET" yaml:"secret"`
	} `yaml:"basic"`

	Translator struct {
		BaseURL       string        `env:"AUTOFILL_TRANSLATOR_URL,overwrite" yaml:"baseUrl"`
		ContactEmail  string        `env:"AUTOFILL_TRANSLATOR_EMAIL,overwrite" yaml:"contactEmail"`
		UserAgent     string        `env:"AUTOFILL_TRANSLATOR_USER_AGENT,overwrite" yaml:"userAgent"`
		Timeout       time.Duration `env:"AUTOFILL_TRANSLATOR_TIMEOUT,overwrite" yaml:"timeout"`
		RatePerSecond float64       `env:"AUTOFILL_TRANSLATOR_RATE,overwrite" yaml:"ratePerSecond"`
		Burst         int           `env:"AUTOFILL_TRANSLATOR_BURST,overwrite" yaml:"burst"`
		BatchWorkers  int           `env:"AUTOFILL_TRANSLATOR_BATCH_WORKERS,overwrite" yaml:"batchWorkers"`
		BatchMaxItems int           `env:"AUTOFILL_TRANSLATOR_BATCH_MAX_ITEMS,overwrite" yaml:"batchMaxItems"`
	} `yaml:"translator"`

	Cache struct {
		// Size is the LRU capacity. Zero keeps every translation for the process lifetime.
		Size     int  `env:"AUTOFILL_CACHE_SIZE,overwrite" yaml:"size"`
		Compress bool `env:"AUTOFILL_CACHE_COMPRESS,overwrite" yaml:"compress"`
		// Path of a SQLite database that keeps translations across restarts.
		// It takes precedence over Size.
		Path string `env:"AUTOFILL_CACHE_PATH,overwrite" yaml:"path"`
	} `yaml:"cache"`

	Autofill struct {
		Debounce time.Duration `env:"AUTOFILL_DEBOUNCE,overwrite" yaml:"debounce"`
	} `yaml:"autofill"`

	Session struct {
		IdleTimeout     time.Duration `env:"AUTOFILL_SESSION_IDLE_TIMEOUT,overwrite" yaml:"idleTimeout"`
		TokenTTL        time.Duration `env:"AUTOFILL_SESSION_TOKEN_TTL,overwrite" yaml:"tokenTtl"`
		CleanupInterval time.Duration `env:"AUTOFILL_SESSION_CLEANUP_INTERVAL,overwrite" yaml:"cleanupInterval"`
		MaxSessions     int           `env:"AUTOFILL_SESSION_MAX,overwrite" yaml:"maxSessions"`
	} `yaml:"session"`

	Phrasebook struct {
		ExtraFile string `env:"AUTOFILL_PHRASEBOOK_FILE,overwrite" yaml:"extraFile"`
	} `yaml:"phrasebook"`

	Limiter struct {
		Enabled    bool    `env:"AUTOFILL_LIMITER,overwrite" yaml:"enabled"`
		Rate       float64 `env:"AUTOFILL_LIMITER_RATE,overwrite" yaml:"rate"`
		Burst      int     `env:"AUTOFILL_LIMITER_BURST,overwrite" yaml:"burst"`
		IPv4Prefix int     `env:"AUTOFILL_LIMITER_IPV4_PREFIX,overwrite" yaml:"ipv4Prefix"`
		IPv6Prefix int     `env:"AUTOFILL_LIMITER_IPV6_PREFIX,overwrite" yaml:"ipv6Prefix"`
		// Expiry is how long an idle network's limiter is kept.
		Expiry time.Duration `env:"AUTOFILL_LIMITER_EXPIRY,overwrite" yaml:"expiry"`
	} `yaml:"limiter"`

	Instance struct {
		StartingTime string `yaml:"-"`
		InstanceID   string `yaml:"-"`
	} `yaml:"-"`

	Development struct {
		InDevelopment bool `env:"AUTOFILL_DEV" yaml:"inDevelopment"`
	} `yaml:"development"`

	Log struct {
		Level   string   `env:"AUTOFILL_LOG_LEVEL,overwrite" yaml:"logLevel"`
		Outputs []string `env:"AUTOFILL_LOG_OUTPUTS,overwrite" yaml:"logOutputs"`
		Format  string   `env:"AUTOFILL_LOG_FORMAT,overwrite" yaml:"logFormat"`
	} `yaml:"log"`

	Internationalization struct {
		// Strict mode for missing keys.
		//
		// When enabled, missing keys are logged (deduplicated per locale+key) and
		// visibly wrapped using markers.
		StrictMissingKeys bool `env:"AUTOFILL_STRICT_MISSING_KEYS" yaml:"strictMissingKeys"`
	} `yaml:"internationalization"`
}

// LoadConfig loads the configuration from the file chosen by -config or
// AUTOFILL_CONFIGFILE, the .env file and the environment.
func (cfg *ServerConfig) LoadConfig() error {
	return cfg.load(configFilePath())
}

// load applies, in order of increasing precedence, the defaults, the YAML
// file, the .env file and the process environment, then validates the result.
func (cfg *ServerConfig) load(configFilePath string) error {
	cfg.SetDefaults()
	cfg.Build = readBuildInfo()
	cfg.Instance.InstanceID = idgen.Make()
	cfg.Instance.StartingTime = time.Now().UTC().Format("2006-01-02 15:04")

	steps := []struct {
		what string
		run  func() error
	}{
		{"YAML config", func() error { return cfg.readYAML(configFilePath) }},
		{".env file", useDotEnv},
		{"environment variables", func() error { return readEnv(cfg) }},
		{"validation", cfg.validateAndSet},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("configuration %s failed: %w", step.what, err)
		}
	}

	cfg.setupAudit()
	cfg.announce()

	if cfg.Basic.UnixSocket == "" && !isWildcardHost(cfg.Basic.Host) && inContainer() {
		log.Warn().
			Str("host", cfg.Basic.Host).
			Msg("Listening on a specific host inside a container; the API may be unreachable from outside. Use 0.0.0.0 or ::")
	}

	return nil
}

// ShouldSkipServerLogging reports whether request logging is suppressed for
// path. Health checks are only logged in development.
func (cfg *ServerConfig) ShouldSkipServerLogging(path string) bool {
	return !cfg.Development.InDevelopment && strings.HasPrefix(path, "/healthz")
}

func isWildcardHost(host string) bool {
	return host == "0.0.0.0" || host == "::"
}

// inContainer guesses from well-known marker files and the cgroup path
// whether the process runs in a container.
func inContainer() bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" || exists("/.dockerenv") || exists("/.containerenv") {
		return true
	}

	cgroup, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}

	return slices.ContainsFunc([]string{"docker", "kubepods", "containerd", "lxc", "crio"}, func(marker string) bool {
		return bytes.Contains(cgroup, []byte(marker))
	})
}

// GetDurationEncoderOption renders time.Duration values as strings such as "30m0s".
func GetDurationEncoderOption() yaml.EncodeOption {
	return yaml.CustomMarshaler(func(d time.Duration) ([]byte, error) {
		return yaml.Marshal(d.String())
	})
}
