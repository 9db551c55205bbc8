package domain

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every Validate error so callers can tell a
// malformed payload apart from transport failures.
var ErrInvalid = errors.New("invalid payload")

// Validator is implemented by payloads that check their own shape after decoding.
type Validator interface {
	Validate() error
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
