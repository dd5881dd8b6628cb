package resolver

import (
	"errors"
	"fmt"
)

// ErrImageNotFound is matched by errors.Is for every *ImageNotFoundError.
var ErrImageNotFound = errors.New("image not found")

// ImageNotFoundError is returned in build mode when the identifier has no matching local file.
type ImageNotFoundError struct {
	Identifier string
	Path       string
}

func (e *ImageNotFoundError) Error() string {
	return fmt.Sprintf("image %q not found: %s is not a regular file", e.Identifier, e.Path)
}

func (e *ImageNotFoundError) Is(target error) bool {
	return target == ErrImageNotFound
}
