package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSource = errors.New("source already exists")
	ErrNotFound        = errors.New("not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrStoreBusy       = errors.New("store is busy")
	ErrInvalidAnalysis = errors.New("invalid analysis")
	ErrInvalidArgument = errors.New("invalid argument")
)

// IngestPartialFailure describes one source that could not be fetched or stored
// during an ingest cycle. It never aborts the cycle.
type IngestPartialFailure struct {
	Source string
	Reason string
}

func (f IngestPartialFailure) Error() string {
	return fmt.Sprintf("ingest source %s: %s", f.Source, f.Reason)
}

func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w (got %d)", ErrInvalidRating, rating)
	}

	return nil
}
