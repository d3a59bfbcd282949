package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")

	// Path resolution errors
	ErrAccessDenied    = errors.New("access denied")
	ErrUnauthenticated = errors.New("not authenticated")

	// File/Directory related errors
	ErrNotFound     = errors.New("path not found")
	ErrPathConflict = errors.New("path conflict")

	// Trash related errors
	ErrTrashEntryNotFound = errors.New("trash entry not found")
	ErrLedgerCorrupt      = errors.New("trash ledger is corrupt")

	// Share related errors
	ErrShareNotFound = errors.New("share not found")
	ErrShareExpired  = errors.New("share expired")

	// Type-class errors
	ErrUnknownTypeClass = errors.New("unknown type class")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
