// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

const redactedValue = "[redacted]"

// announce logs the build and writes the effective configuration to stderr.
func (cfg *ServerConfig) announce() {
	log.Info().
		Str("version", BuildVersion).
		Str("revision", cfg.Build.Revision()).
		Str("instance", cfg.Instance.InstanceID).
		Msg("Starting autofill")

	out, err := cfg.printable()
	if err != nil {
		log.Error().Err(err).Msg("Failed to render configuration")

		return
	}

	log.Info().Msg("Effective configuration follows")

	_, _ = os.Stderr.Write(out)
}

// printable renders cfg as YAML without the signing secret or the contact address.
func (cfg *ServerConfig) printable() ([]byte, error) {
	shown := *cfg
	shown.Basic.PasetoSecret = redactedValue

	if shown.Translator.ContactEmail != "" {
		shown.Translator.ContactEmail = redactedValue
	}

	return yaml.MarshalWithOptions(shown, GetDurationEncoderOption())
}
