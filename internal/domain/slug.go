package domain

import (
	"errors"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ErrInvalidSlug reports a slug outside the accepted shape.
var ErrInvalidSlug = errors.New("slug must be lowercase letters, digits and single hyphens")

// NormalizeSlug lowercases and trims a slug, validating its shape.
func NormalizeSlug(raw string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if slug == "" || len(slug) > 63 || !slugPattern.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	return slug, nil
}
