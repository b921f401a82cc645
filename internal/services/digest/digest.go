// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package digest produces the salted credential digest stored in tb_usuarios.senha_hash.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Salt is prepended to every input. Existing rows depend on it; it must not change.
const Salt = "clube"

// Size is the length of a digest in hex characters.
const Size = sha256.Size * 2

// Digest returns the lower-case hex SHA-256 of Salt+input.
func Digest(input string) string {
	sum := sha256.Sum256([]byte(Salt + input))
	return hex.EncodeToString(sum[:])
}

// Password returns the credential hash for a password.
func Password(password string) string {
	return Digest(password)
}

// Matches reports whether stored equals candidate, ignoring hex case.
func Matches(stored, candidate string) bool {
	return len(stored) == Size && strings.EqualFold(stored, candidate)
}
