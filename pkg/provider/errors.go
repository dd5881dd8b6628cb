package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is matched by errors.Is for every *UnknownProviderError.
var ErrUnknownProvider = errors.New("unknown provider")

// UnknownProviderError is returned when the configured provider name has no registered factory.
type UnknownProviderError struct {
	Name  string
	Known []string
}

func (e *UnknownProviderError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown provider %q: no provider is registered", e.Name)
	}

	return fmt.Sprintf("unknown provider %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}
