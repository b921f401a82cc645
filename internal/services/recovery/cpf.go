// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"strings"

	"codeberg.org/clubedagente/backoffice/internal/models"
)

// cpfDigits is the number of digits of a CPF.
const cpfDigits = 11

// Digits strips everything but ASCII digits from s.
func Digits(s string) string {
	return models.Digits(s)
}

// FormatCPF masks raw as 000.000.000-00. Partial input is masked as far as it
// goes and extra digits are dropped.
func FormatCPF(raw string) string {
	digits := Digits(raw)
	if len(digits) > cpfDigits {
		digits = digits[:cpfDigits]
	}

	var b strings.Builder
	for i := 0; i < len(digits); i++ {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

func sameCPF(stored, entered string) bool {
	s := Digits(stored)
	return s != "" && s == Digits(entered)
}
