// Package service provides business logic implementations.
package service

import (
	"errors"
	"fmt"

	"geo-challenge/internal/repository"
)

// Errors returned to callers. Every failure wraps exactly one of these.
var (
	ErrInvalidBoundary    = errors.New("invalid boundary")
	ErrInvalidPhoto       = errors.New("invalid photo")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("challenge not found")
	ErrEmptyGuess         = errors.New("guess needs a coordinate or a photo")
	ErrAlreadySolved      = errors.New("challenge already solved")
	ErrScoringUnavailable = errors.New("photo scoring unavailable")
	ErrStorageFailure     = errors.New("storage failure")
)

// storageError maps repository errors onto the service taxonomy.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrChallengeNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrAlreadySolved):
		return ErrAlreadySolved
	default:
		return fmt.Errorf("%w: %s: %v", ErrStorageFailure, op, err)
	}
}
