// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package digest_test

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"testing"

	"codeberg.org/clubedagente/backoffice/internal/services/digest"
	"github.com/stretchr/testify/assert"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestDigest_Format(t *testing.T) {
	for _, input := range []string{"", "senha123", "çãõ 🔑", strings.Repeat("x", 4096)} {
		assert.Regexp(t, hexDigest, digest.Digest(input))
	}
}

func TestDigest_SaltedSHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("clubesenha123"))

	assert.Equal(t, hex.EncodeToString(sum[:]), digest.Digest("senha123"))
}

func TestDigest_KnownVectors(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "a9c5e061b86713d9480eed1bedcf9b3019e4b002e0ca90ee4c1fd35ff01fdf4b"},
		{"senha123", "6330692e728b8fd9c12380b4e8d1b22859222a1ef6a88f06f9267810c7564660"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, digest.Digest(tt.input))
		})
	}
}

func TestDigest_Deterministic(t *testing.T) {
	assert.Equal(t, digest.Digest("abc"), digest.Digest("abc"))
	assert.NotEqual(t, digest.Digest("abc"), digest.Digest("abd"))
}

func TestPassword(t *testing.T) {
	assert.Equal(t, digest.Digest("novasenha"), digest.Password("novasenha"))
}

func TestMatches(t *testing.T) {
	hash := digest.Password("segredo")

	tests := []struct {
		name      string
		stored    string
		candidate string
		expected  bool
	}{
		{"same", hash, hash, true},
		{"upper-case stored", strings.ToUpper(hash), hash, true},
		{"different", digest.Password("outro"), hash, false},
		{"plaintext stored", "segredo", hash, false},
		{"empty stored", "", digest.Password(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, digest.Matches(tt.stored, tt.candidate))
		})
	}
}
