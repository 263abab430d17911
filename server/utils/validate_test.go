// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package utils

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	type body struct {
		Name  string      `validate:"required"`
		Pairs [][2]string `validate:"dive,dive,required"`
	}

	require.NoError(t, Validate(&body{Name: "x", Pairs: [][2]string{{"a", "b"}}}))

	err := Validate(&body{Pairs: [][2]string{{"a", ""}}})
	require.Error(t, err)
	fields := InvalidFields(err)
	require.Len(t, fields, 2)
	assert.Contains(t, fields, "Name")
	assert.True(t, slices.ContainsFunc(fields, func(f string) bool { return strings.HasPrefix(f, "Pairs[0]") }), fields)

	assert.Nil(t, InvalidFields(errors.New("other")))
}
