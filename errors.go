package evidgo

import (
	"errors"
	"fmt"

	"github.com/evidgo/evidgo/distance"
	"github.com/evidgo/evidgo/embedding"
	"github.com/evidgo/evidgo/index"
	"github.com/evidgo/evidgo/kvstore"
	"github.com/evidgo/evidgo/scoring"
)

var (
	// ErrNotFound is returned when an item is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidLimit is returned when a query limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// IsRetryable reports whether err is a transient provider failure
// (rate limit or timeout) that may succeed after backing off.
func IsRetryable(err error) bool {
	var pe *embedding.ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

// IsStorage reports whether err originated in the durable storage layer.
func IsStorage(err error) bool {
	var se *kvstore.StorageError
	return errors.As(err, &se)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, scoring.ErrClaimNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, index.ErrInvalidLimit) {
		return fmt.Errorf("%w: %w", ErrInvalidLimit, err)
	}

	// Dimension normalization.
	var lm *distance.ErrLengthMismatch
	if errors.As(err, &lm) {
		return &ErrDimensionMismatch{Expected: lm.A, Actual: lm.B, cause: err}
	}

	return err
}
