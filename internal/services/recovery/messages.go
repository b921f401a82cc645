// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"context"
	"errors"
	"math"
	"time"
)

// MessageID returns the translation id and template data of the single
// user-facing message for err.
func MessageID(err error) (string, map[string]any) {
	var cooldown *CooldownError
	switch {
	case err == nil:
		return "", nil
	case errors.As(err, &cooldown):
		return "recovery_error_cooldown", map[string]any{"Seconds": Seconds(cooldown.Remaining)}
	case errors.Is(err, ErrIdentityNotFound):
		return "recovery_error_identity_not_found", nil
	case errors.Is(err, ErrMismatchedSecondaryFactor):
		return "recovery_error_mismatch", nil
	case errors.Is(err, ErrDeliveryFailed):
		return "recovery_error_delivery_failed", nil
	case errors.Is(err, ErrCodeFormat):
		return "recovery_error_code_format", nil
	case errors.Is(err, ErrIncorrectCode):
		return "recovery_error_incorrect_code", nil
	case errors.Is(err, ErrPasswordRequired):
		return "recovery_error_password_required", nil
	case errors.Is(err, ErrPasswordTooShort):
		return "recovery_error_password_too_short", nil
	case errors.Is(err, ErrPasswordMismatch):
		return "recovery_error_password_mismatch", nil
	case errors.Is(err, ErrWrongStep):
		return "recovery_error_wrong_step", nil
	case errors.Is(err, ErrBusy):
		return "recovery_error_busy", nil
	case errors.Is(err, ErrTicketExpired):
		return "recovery_error_expired", nil
	case errors.Is(err, ErrTooManyAttempts):
		return "recovery_error_too_many_attempts", nil
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "recovery_error_cancelled", nil
	default:
		return "recovery_error_technical", nil
	}
}

// Seconds rounds d up to whole seconds, as shown by the resend countdown.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
