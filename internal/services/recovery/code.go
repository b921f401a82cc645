// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the number of digits of a recovery code.
	CodeLength = 6
	// codeMin and codeMax bound the generated codes, both inclusive.
	codeMin = 100000
	codeMax = 999999
	// bcryptCost is the cost factor for hashing codes held by a ticket.
	bcryptCost = 10
)

// CodeGenerator returns a fresh recovery code.
type CodeGenerator func() (string, error)

// RandomCode draws a code uniformly from [100000, 999999] using crypto/rand.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// FixedCodes returns a generator that yields codes in order and repeats the
// last one once exhausted.
func FixedCodes(codes ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		if len(codes) == 0 {
			return "", fmt.Errorf("no codes configured")
		}
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}

// ValidCodeFormat reports whether code is exactly CodeLength ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func hashCode(code string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}
	return hash, nil
}

func codeMatches(hash []byte, code string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil
}
