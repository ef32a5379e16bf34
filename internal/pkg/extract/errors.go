package extract

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// The filter matches nothing or the collection does not exist.
	ErrEmptyResult = errors.New("database/collection does not exist or does not contain the record")

	// Malformed filter or projection.
	ErrPipeline = errors.New("invalid extraction pipeline")

	// Network or server failure while counting, opening or advancing the cursor.
	ErrTransport = errors.New("extraction transport failure")

	// Paging contract violations.
	ErrInvalidLimit   = errors.New("page limit must be positive")
	ErrInvalidSkip    = errors.New("page skip must not be negative")
	ErrSkipRegression = errors.New("page skip went backward, the cursor cannot seek back")
)

// Classify a driver error. Command errors rejected by the server (unknown
// operator, bad stage) are pipeline errors, everything else is transport.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
