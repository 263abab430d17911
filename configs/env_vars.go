// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	errNotStructPointer = errors.New("env target must be a pointer to a struct")
	errUnsupportedKind  = errors.New("unsupported field kind")
)

var durationType = reflect.TypeFor[time.Duration]()

// envTag is a parsed `env:"NAME[,overwrite]"` struct tag.
type envTag struct {
	name      string
	overwrite bool
}

func parseEnvTag(raw string) (envTag, bool) {
	name, opts, _ := strings.Cut(raw, ",")
	if name == "" {
		return envTag{}, false
	}

	return envTag{name: name, overwrite: opts == "overwrite"}, true
}

// readEnv copies environment variables into the fields of the struct target points to,
// descending into nested structs. A field tagged without overwrite is only
// filled while it still holds its zero value.
func readEnv(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", errNotStructPointer, target)
	}

	return walkEnv(v.Elem())
}

func walkEnv(v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		sf, field := t.Field(i), v.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag, tagged := parseEnvTag(sf.Tag.Get("env"))
		if !tagged {
			if field.Kind() == reflect.Struct {
				if err := walkEnv(field); err != nil {
					return err
				}
			}

			continue
		}

		raw, ok := os.LookupEnv(tag.name)
		if !ok || (!tag.overwrite && !field.IsZero()) {
			continue
		}

		if err := assignEnv(field, raw); err != nil {
			return fmt.Errorf("%s (field %s): %w", tag.name, sf.Name, err)
		}
	}

	return nil
}

// assignEnv parses raw according to the kind of field and stores it.
// String slices are comma-separated with blank items dropped.
func assignEnv(field reflect.Value, raw string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}

		field.SetInt(int64(d))

		return nil
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		items := []string{}

		for item := range strings.SplitSeq(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}

		field.Set(reflect.ValueOf(items))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetFloat(f)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedKind, field.Type())
	}

	return nil
}
