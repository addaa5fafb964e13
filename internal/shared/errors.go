package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrChargeBusy indicates a concurrent regeneration holds the charge lock.
	ErrChargeBusy = errors.New("charge is locked by another regeneration")
)
