// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

// AccountStatus is the value stored in tb_usuarios.status_conta.
type AccountStatus string

const (
	StatusActive                AccountStatus = "ATIVO"
	StatusSuspended             AccountStatus = "SUSPENSO"
	StatusCancellationRequested AccountStatus = "SOLICITOU CANCELAMENTO"
	StatusCancelled             AccountStatus = "CANCELADO"
)

// BlockReason explains why an account may not log in.
type BlockReason string

const (
	BlockSuspended           BlockReason = "suspended"
	BlockCancelled           BlockReason = "cancelled"
	BlockPendingCancellation BlockReason = "blocked pending cancellation"
)

// LoginBlock reports whether the status forbids logging in.
// Only StatusActive is allowed; any other value, known or not, is blocked.
func (s AccountStatus) LoginBlock() (BlockReason, bool) {
	switch s {
	case StatusActive:
		return "", false
	case StatusSuspended:
		return BlockSuspended, true
	case StatusCancelled:
		return BlockCancelled, true
	default:
		return BlockPendingCancellation, true
	}
}

// Known reports whether s is one of the statuses the back-office manages.
func (s AccountStatus) Known() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusCancellationRequested, StatusCancelled:
		return true
	}
	return false
}
