// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codeberg.org/newbee/autofill/core/audit"
)

const logFilePermissions = 0o640

// setupAudit points the global logger at the configured outputs. Stdout and
// stderr are named by their device paths, anything else is a file appended to.
func (cfg *ServerConfig) setupAudit() {
	zerolog.SetGlobalLevel(cfg.logLevel())

	outputs := cfg.Log.Outputs
	if len(outputs) == 0 {
		outputs = []string{"/dev/stderr"}
	}

	writers := make([]io.Writer, 0, len(outputs))

	for _, name := range outputs {
		f, err := openLogOutput(name)
		if err != nil {
			log.Error().Err(err).Str("output", name).Msg("Skipping log output")

			continue
		}

		if cfg.Log.Format == "json" {
			writers = append(writers, f)
		} else {
			writers = append(writers, audit.Console(f))
		}
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))
}

func openLogOutput(name string) (*os.File, error) {
	switch name {
	case "/dev/stdout":
		return os.Stdout, nil
	case "/dev/stderr":
		return os.Stderr, nil
	}

	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions) // #nosec G304 -- operator-supplied log path
}

// logLevel parses log.logLevel, falling back to info. Development mode always logs debug.
func (cfg *ServerConfig) logLevel() zerolog.Level {
	if cfg.Development.InDevelopment {
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return level
}
