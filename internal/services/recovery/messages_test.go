// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/services/recovery"
	"github.com/stretchr/testify/assert"
)

func TestMessageID(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{recovery.ErrIdentityNotFound, "recovery_error_identity_not_found"},
		{recovery.ErrMismatchedSecondaryFactor, "recovery_error_mismatch"},
		{fmt.Errorf("%w: smtp down", recovery.ErrDeliveryFailed), "recovery_error_delivery_failed"},
		{recovery.ErrCodeFormat, "recovery_error_code_format"},
		{recovery.ErrIncorrectCode, "recovery_error_incorrect_code"},
		{recovery.ErrPasswordRequired, "recovery_error_password_required"},
		{recovery.ErrPasswordTooShort, "recovery_error_password_too_short"},
		{recovery.ErrPasswordMismatch, "recovery_error_password_mismatch"},
		{recovery.ErrWrongStep, "recovery_error_wrong_step"},
		{recovery.ErrBusy, "recovery_error_busy"},
		{recovery.ErrTicketExpired, "recovery_error_expired"},
		{recovery.ErrTooManyAttempts, "recovery_error_too_many_attempts"},
		{recovery.ErrCancelled, "recovery_error_cancelled"},
		{context.Canceled, "recovery_error_cancelled"},
		{recovery.ErrTechnical, "recovery_error_technical"},
		{errors.New("boom"), "recovery_error_technical"},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			id, _ := recovery.MessageID(tt.err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestMessageID_Cooldown(t *testing.T) {
	id, data := recovery.MessageID(&recovery.CooldownError{Remaining: 39500 * time.Millisecond})

	assert.Equal(t, "recovery_error_cooldown", id)
	assert.Equal(t, map[string]any{"Seconds": 40}, data)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0, recovery.Seconds(0))
	assert.Equal(t, 0, recovery.Seconds(-time.Second))
	assert.Equal(t, 1, recovery.Seconds(time.Millisecond))
	assert.Equal(t, 60, recovery.Seconds(time.Minute))
}
