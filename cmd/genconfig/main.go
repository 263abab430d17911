// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Genconfig writes the example configuration files in deploy/ from the
configuration defaults.

With -secret it instead prints a fresh form session signing key.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	config "codeberg.org/newbee/autofill/configs"
	"codeberg.org/newbee/autofill/core/audit"
	"codeberg.org/newbee/autofill/core/authenticated"
)

const (
	envOutputFile  = "deploy/.env.example"
	yamlOutputFile = "deploy/config.yaml.example"
	filePerm       = 0o644
	dirPerm        = 0o755

	envFileHeader = `# Autofill configuration (via environment variables)
#
# Copy this file to .env and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.

`
	yamlFileHeader = `# Autofill configuration (via configuration file)
#
# Copy this file to config.yaml and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.
`
	proxySettingsComment = `## Network proxy settings for the translation service
## ref: https://pkg.go.dev/net/http#ProxyFromEnvironment
# HTTPS_PROXY=
# HTTP_PROXY=`

	secretComment = "# Generate a key with: go run ./cmd/genconfig -secret"
)

func main() {
	audit.SetDefaultLogger()

	printSecret := flag.Bool("secret", false, "print a new form session signing key and exit")
	flag.Parse()

	if *printSecret {
		fmt.Println(authenticated.NewSecretKeyHex())

		return
	}

	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	yamlContent, err := renderYAML(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal config to YAML")
	}

	writeFile(envOutputFile, renderEnv(cfg))
	writeFile(yamlOutputFile, yamlContent)
}

func writeFile(path, content string) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to create output directory")
	}

	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write example file")
	}

	log.Info().Str("path", path).Msg("Successfully generated example file")
}

// envEntry is one line of the .env example.
type envEntry struct {
	name  string
	value string
	// active entries are written uncommented.
	active bool
}

// activeEnv are the settings left uncommented in the .env example.
var activeEnv = map[string]bool{"AUTOFILL_HOST": true, "AUTOFILL_PORT": true}

// envSections lists, per top-level config section with env tags, its
// variables and default values.
func envSections(cfg *config.ServerConfig) (names []string, entries [][]envEntry) {
	root := reflect.ValueOf(cfg).Elem()

	for _, sf := range reflect.VisibleFields(root.Type()) {
		section := root.FieldByIndex(sf.Index)
		if sf.Tag.Get("yaml") == "-" || section.Kind() != reflect.Struct {
			continue
		}

		var list []envEntry

		for _, f := range reflect.VisibleFields(section.Type()) {
			name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
			if name == "" {
				continue
			}

			list = append(list, envEntry{
				name:   name,
				value:  envValue(section.FieldByIndex(f.Index)),
				active: activeEnv[name],
			})
		}

		names = append(names, sf.Name)
		entries = append(entries, list)
	}

	return names, entries
}

func envValue(v reflect.Value) string {
	if v.Kind() != reflect.Slice {
		return fmt.Sprint(v.Interface())
	}

	items := make([]string, v.Len())
	for i := range items {
		items[i] = fmt.Sprint(v.Index(i).Interface())
	}

	return strings.Join(items, ",")
}

// renderEnv renders the .env example for cfg.
func renderEnv(cfg *config.ServerConfig) string {
	var sb strings.Builder
	sb.WriteString(envFileHeader)

	names, sections := envSections(cfg)

	for i, entries := range sections {
		fmt.Fprintf(&sb, "## %s\n", names[i])

		for _, e := range entries {
			switch {
			case e.name == "AUTOFILL_SECRET":
				fmt.Fprintf(&sb, "%s\n# %s=\n", secretComment, e.name)
			case e.active:
				fmt.Fprintf(&sb, "%s=%q\n", e.name, e.value)
			default:
				fmt.Fprintf(&sb, "# %s=%s\n", e.name, e.value)
			}
		}

		sb.WriteByte('\n')
	}

	sb.WriteString(proxySettingsComment)
	sb.WriteByte('\n')

	return sb.String()
}

// renderYAML renders the config.yaml example for cfg. Section headers stay
// as they are and every setting below them is commented out.
func renderYAML(cfg *config.ServerConfig) (string, error) {
	raw, err := yaml.MarshalWithOptions(cfg, config.GetDurationEncoderOption(), yaml.Indent(2))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(yamlFileHeader)

	for line := range strings.Lines(string(raw)) {
		line = strings.TrimRight(line, "\n")
		body := strings.TrimLeft(line, " ")

		switch {
		case body == "":
			continue
		case body == line:
			fmt.Fprintf(&sb, "\n%s\n", line)

			continue
		}

		indent := line[:len(line)-len(body)]
		if strings.HasPrefix(body, "secret:") {
			fmt.Fprintf(&sb, "%s%s\n", indent, secretComment)
		}

		fmt.Fprintf(&sb, "%s# %s\n", indent, body)
	}

	return sb.String(), nil
}
