package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var imagePattern = regexp.MustCompile(
	`^([a-z0-9]+([._-][a-z0-9]+)*(/[a-z0-9]+([._-][a-z0-9]+)*)*(:[a-zA-Z0-9._-]+)?(@sha256:[a-f0-9]{64})?)$`)

// ValidateImageName validates container image references beyond the
// domain invariant (non-empty, no whitespace): registry/name[:tag][@digest]
// shape plus shell-metacharacter rejection, since refs end up as
// subprocess arguments.
func ValidateImageName(image string) error {
	if image == "" {
		return fmt.Errorf("image name cannot be empty")
	}

	if !imagePattern.MatchString(strings.ToLower(image)) {
		return fmt.Errorf("invalid container image name format: %s", image)
	}

	// Block dangerous patterns
	dangerous := []string{"../", "..", "$(", "`", "&", "|", ";", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(image, d) {
			return fmt.Errorf("invalid characters in image name")
		}
	}

	return nil
}

// ValidateBackend checks the scanning backend name against the allowed list
func ValidateBackend(backend string) error {
	if backend == "" {
		return nil // optional, defaults server-side
	}
	allowed := map[string]bool{
		"snyk": true,
	}
	if !allowed[strings.ToLower(backend)] {
		return fmt.Errorf("invalid backend: %s (allowed: snyk)", backend)
	}
	return nil
}
