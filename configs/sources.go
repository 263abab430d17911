// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

const (
	configFlag    = "config"
	configFileEnv = "AUTOFILL_CONFIGFILE"
	defaultConfig = "./config.yaml"
)

// configFilePath picks the YAML file to read: an explicit -config flag first,
// then AUTOFILL_CONFIGFILE, then ./config.yaml or ./config.yml if only the latter exists.
func configFilePath() string {
	path := defaultConfig

	if flag.Lookup(configFlag) == nil {
		flag.StringVar(&path, configFlag, defaultConfig, "Path to an autofill configuration file in YAML format.")
	}

	if !flag.Parsed() {
		flag.Parse()
	}

	explicit := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == configFlag {
			explicit = true
			path = f.Value.String()
		}
	})

	if explicit {
		return path
	}

	if env := os.Getenv(configFileEnv); env != "" {
		return env
	}

	if !exists(defaultConfig) && exists("./config.yml") {
		return "./config.yml"
	}

	return defaultConfig
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// readYAML decodes the file at path over cfg. Only keys present in the file
// change cfg, and unknown keys are an error. An absent file is skipped.
func (cfg *ServerConfig) readYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", path).Msg("No YAML configuration file found, skipping")

		return nil
	case err != nil:
		return fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Loaded YAML configuration")

	return nil
}
