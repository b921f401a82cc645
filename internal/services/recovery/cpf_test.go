// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery_test

import (
	"testing"

	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
	"github.com/stretchr/testify/assert"
)

func TestFormatCPF(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", ""},
		{"123", "123"},
		{"1234", "123.4"},
		{"1234567", "123.456.7"},
		{"1234567890", "123.456.789-0"},
		{"12345678909", "123.456.789-09"},
		{"123.456.789-09", "123.456.789-09"},
		{"123456789091234", "123.456.789-09"},
		{"abc12345678909", "123.456.789-09"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, recovery.FormatCPF(tt.raw))
		})
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "12345678909", recovery.Digits("123.456.789-09"))
	assert.Empty(t, recovery.Digits("..-"))
}
