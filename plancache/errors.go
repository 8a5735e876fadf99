package plancache

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidMaxSize = errors.New("plancache: max cache size must be positive")
	ErrNilGenerator   = errors.New("plancache: generator is required")
	ErrClosed         = errors.New("plancache: manager is closed")
)

// GenerationError is returned when the Generator fails. It unwraps to the
// generator's error.
type GenerationError struct {
	Pattern string
	Key     string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("plancache: generate plan for %q: %v", e.Pattern, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is or wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
