package library

import (
	"errors"

	"songforge/repository"
)

var (
	// ErrInvalidInput marks a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing track.
	ErrNotFound = errors.New("track not found")
	// ErrForbidden marks an operation on someone else's track.
	ErrForbidden = errors.New("forbidden")
)

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
