package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// MaxTextLength bounds free-text fields such as notes and reasons
const MaxTextLength = 4000

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// SanitizeText trims s, strips control characters other than tab and
// newlines, and truncates it to MaxTextLength runes
func SanitizeText(s string) string {
	s = strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
	if runes := []rune(s); len(runes) > MaxTextLength {
		s = string(runes[:MaxTextLength])
	}
	return s
}
