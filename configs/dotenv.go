// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// useDotEnv exports the variables of the first .env file found in the working
// directory or next to the executable. Variables already set in the process
// environment keep their value.
func useDotEnv() error {
	for _, path := range dotEnvPaths() {
		data, err := os.ReadFile(path) // #nosec G304 -- fixed file name in known directories
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not read .env file")

			continue
		}

		for key, value := range parseDotEnv(path, data) {
			if _, set := os.LookupEnv(key); set {
				continue
			}

			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}

		log.Info().Str("path", path).Msg("Loaded configuration from .env file")

		return nil
	}

	log.Debug().Msg("No .env file found")

	return nil
}

func dotEnvPaths() []string {
	var dirs []string

	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	paths := make([]string, len(dirs))
	for i, dir := range dirs {
		paths[i] = filepath.Join(dir, ".env")
	}

	return paths
}

// parseDotEnv reads KEY=VALUE lines, skipping blanks and # comments.
// A value wrapped in matching single or double quotes is unwrapped.
func parseDotEnv(name string, data []byte) map[string]string {
	vars := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			log.Warn().Str("path", name).Int("line", n).Msg("Ignoring .env line without '='")

			continue
		}

		vars[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	return vars
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}

	if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
		return s[1 : len(s)-1]
	}

	return s
}
