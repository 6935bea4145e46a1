package services

import "errors"

var (
	// ErrServiceNotReady is returned by every request operation until
	// Initialize has completed successfully.
	ErrServiceNotReady = errors.New("service not ready")
	ErrNotFound        = errors.New("not found")
	ErrOperationFailed = errors.New("operation failed")
	ErrInvalidInput    = errors.New("invalid input")
)
