package contextutils

import (
	"net/url"
	"strings"
)

// MaskAPIKey masks an API key for logging, keeping only the first and last 4 characters
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "[EMPTY]"
	}

	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}

	return apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
}

// RedactDatabaseURL hides the password of a connection URL so it can be logged
func RedactDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}
	return u.Redacted()
}
