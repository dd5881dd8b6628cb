package resolver

import (
	"fmt"
	"strings"
)

// Mode is the environment the host is rendering for.
type Mode string

const (
	// ModeBuild produces deployable output: links must point to the CDN.
	ModeBuild Mode = "build"
	// ModePreview is any local iteration mode, where the dev server serves the staging folder.
	ModePreview Mode = "preview"
)

// ParseMode maps the host environment names to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "build", "production":
		return ModeBuild, nil
	case "preview", "development", "server", "":
		return ModePreview, nil
	default:
		return "", fmt.Errorf("%q is not a valid mode (expected \"build\" or \"preview\")", s)
	}
}

func (m Mode) IsBuild() bool {
	return m == ModeBuild
}
