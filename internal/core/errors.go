package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyItem        = errors.New("item required")
	ErrAmountNotInteger = errors.New("amount must be int")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyLabel       = errors.New("label required")
	ErrUnknownTable     = errors.New("unknown table")
	ErrInvalidImport    = errors.New("invalid import")
	ErrBalanceOverflow  = errors.New("balance out of range")
)

// ValidationError is a rejected operation caused by caller input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError reports a failed file operation on a table.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
