package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// SanitizeText strips all markup. Post content and profile fields are
// plain text; nothing in the API renders user-supplied HTML.
func SanitizeText(input string) string {
	return sanitizer.Sanitize(input)
}
