package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const MinPasswordLength = 8

func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// IsStrongPassword requires at least MinPasswordLength characters with an
// upper-case letter, a lower-case letter, a digit and a special character.
func IsStrongPassword(s string) bool {
	if utf8.RuneCountInString(s) < MinPasswordLength {
		return false
	}

	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

func IsValidEnum(value string, validValues []string) bool {
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}

// TextLength counts characters of the trimmed text.
func TextLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
