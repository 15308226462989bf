package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Storage errors
	ErrStorageRead   = errors.New("storage read failed")
	ErrStorageWrite  = errors.New("storage write failed")
	ErrStorageDelete = errors.New("storage delete failed")
	ErrCorruptStore  = errors.New("corrupt store")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Join wraps err so that it matches both kind and the original error chain
func Join(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
