package service

import (
	"strings"
)

const maxUsernameLength = 32

// DeriveUsername picks the desired username from an explicit hint, falling
// back to the email's local part. The result is a base candidate only;
// account creation appends a numeric suffix until it is unique.
func DeriveUsername(hint, email string) string {
	if u := sanitizeUsername(hint); u != "" {
		return u
	}
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	if u := sanitizeUsername(local); u != "" {
		return u
	}
	return "user"
}

// sanitizeUsername lowercases and strips characters outside [a-z0-9_.-].
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
		if b.Len() >= maxUsernameLength {
			break
		}
	}
	return b.String()
}
