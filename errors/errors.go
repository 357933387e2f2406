package errors

import (
	goerrors "errors"
	"fmt"
)

var (
	ErrValidation = fmt.Errorf("validation error")
	ErrNotFound   = fmt.Errorf("not found")

	ErrEmptyDisplayName    = fmt.Errorf("%w: display name is required", ErrValidation)
	ErrEmptyMessage        = fmt.Errorf("%w: message text is required", ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("%w: unknown status", ErrValidation)
	ErrNotRegistered       = fmt.Errorf("%w: connection is not registered", ErrValidation)
	ErrUnknownAction       = fmt.Errorf("%w: unknown action", ErrValidation)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	ErrArchiveNotFound     = fmt.Errorf("archive %w", ErrNotFound)
	ErrRecordNotFound      = fmt.Errorf("record %w", ErrNotFound)

	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrNoHandler      = fmt.Errorf("no handler registered for envelope type")
	ErrReceiptExpired = fmt.Errorf("receipt is no longer valid")
)

func IsValidation(err error) bool {
	return goerrors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return goerrors.Is(err, ErrNotFound)
}
