// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package autofill

import (
	"maps"
	"sync"
)

// FieldAccess reads and writes form field values on behalf of a [Coordinator].
type FieldAccess interface {
	Value(field string) string
	SetValue(field, value string)
}

// FieldPair links the English field of a bilingual pair to its Chinese counterpart.
type FieldPair struct {
	English string `json:"en"`
	Chinese string `json:"zh"`
}

// Values is an in-memory FieldAccess, safe for concurrent use.
type Values struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewValues returns Values holding a copy of initial.
func NewValues(initial map[string]string) *Values {
	v := &Values{values: make(map[string]string, len(initial))}
	maps.Copy(v.values, initial)

	return v
}

func (v *Values) Value(field string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.values[field]
}

func (v *Values) SetValue(field, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.values[field] = value
}

// Merge overwrites the fields present in m.
func (v *Values) Merge(m map[string]string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	maps.Copy(v.values, m)
}

// Snapshot returns a copy of all values.
func (v *Values) Snapshot() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return maps.Clone(v.values)
}
