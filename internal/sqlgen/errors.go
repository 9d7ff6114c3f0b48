package sqlgen

import (
	"errors"
	"fmt"
)

// ErrTranslation is the sentinel all translation failures wrap: the
// descriptor is structurally invalid for the requested operation. These
// errors are raised before any engine interaction and are never retried.
var ErrTranslation = errors.New("translation error")

// TranslationError carries the human-readable reason a descriptor could
// not be compiled.
type TranslationError struct {
	Message string
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation error: %s", e.Message)
}

// Is reports whether the error matches ErrTranslation.
func (e *TranslationError) Is(target error) bool {
	return target == ErrTranslation
}

func translationErrorf(format string, args ...any) error {
	return &TranslationError{Message: fmt.Sprintf(format, args...)}
}
