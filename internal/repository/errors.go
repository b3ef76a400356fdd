// Package repository contains the MySQL persistence layer.  Each
// aggregate gets one file with plain methods for reads outside a
// transaction and ...Tx methods that participate in a caller-supplied
// *sql.Tx.  The sentinel errors below let the service layer
// distinguish failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrSessionNotFound is returned when a class session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrWalletNotFound is returned when a user has no wallet row.  Every
// registered user gets one, so this indicates a data problem.
var ErrWalletNotFound = errors.New("wallet not found")

// ErrInsufficientBalance is returned by the guarded balance update
// when a negative delta would take the wallet below zero.  It is the
// storage-level backstop behind the service layer's own balance
// check.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrUserNotFound is returned when a user lookup by ID finds nothing.
var ErrUserNotFound = errors.New("user not found")
