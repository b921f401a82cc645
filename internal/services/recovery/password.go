// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password the wizard accepts.
const MinPasswordLength = 6

// ValidateNewPassword checks a new password and its confirmation. Rules are
// applied in order and the first failure is returned.
func ValidateNewPassword(newPassword, confirm string) error {
	if strings.TrimSpace(newPassword) == "" || strings.TrimSpace(confirm) == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(strings.TrimSpace(newPassword)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
