package utils

import "strings"

const specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// ValidPassword reports whether a password meets the minimum strength rule:
// at least 8 characters with at least one letter, one digit and one special
// character.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}
