// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// InvalidFields returns the paths of the fields that failed in a [Validate]
// error, such as "Pairs[0][1]". Other errors yield nil.
func InvalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.StructField()
	}

	return fields
}
