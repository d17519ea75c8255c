package utils

import "strings"

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// TrimWhitespace removes leading and trailing whitespace.
func (s *StringHelper) TrimWhitespace(str string) string {
	return strings.TrimSpace(str)
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates string to max length.
func (s *StringHelper) TruncateString(str string, maxLength int) string {
	if len(str) <= maxLength {
		return str
	}

	return str[:maxLength] + "..."
}

// IsDigits reports whether str is non-empty and made of ASCII digits only.
func (s *StringHelper) IsDigits(str string) bool {
	if str == "" {
		return false
	}

	for i := 0; i < len(str); i++ {
		if str[i] < '0' || str[i] > '9' {
			return false
		}
	}

	return true
}

// NormalizeMobile trims a phone number and drops one leading '+'. It returns
// false unless the remainder is at least minDigits digits.
func (s *StringHelper) NormalizeMobile(str string, minDigits int) (string, bool) {
	str = strings.TrimPrefix(strings.TrimSpace(str), "+")

	if !s.IsDigits(str) || len(str) < minDigits {
		return "", false
	}

	return str, true
}
