package domain

import "errors"

// Sentinel errors shared by the store, service and handler layers.
// Wrap with fmt.Errorf("%w: ...") to add context; match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("content not found")
	ErrNotOwner   = errors.New("content not owned by caller")
	ErrStorage    = errors.New("storage failure")
	ErrUpstream   = errors.New("identity service failure")
)
