package utils

import "testing"

func TestValidPassword(t *testing.T) {
	cases := []struct {
		password string
		want     bool
	}{
		{"Abc123!x", true},
		{"longpassword1!", true},
		{"short1!", false},      // under 8 chars
		{"abcdefgh!", false},    // no digit
		{"12345678!", false},    // no letter
		{"abcd1234", false},     // no special char
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidPassword(tc.password); got != tc.want {
			t.Errorf("ValidPassword(%q) = %v, want %v", tc.password, got, tc.want)
		}
	}
}
