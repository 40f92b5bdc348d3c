package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently works on at most 72 bytes of input.
const maxPasswordBytes = 72

// HashPassword hashes a plain password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		password = password[:maxPasswordBytes]
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plain password with its bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	if len(plain) > maxPasswordBytes {
		plain = plain[:maxPasswordBytes]
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
