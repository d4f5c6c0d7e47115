package token

import "strings"

// ExtractBearer parses an Authorization header of the exact shape
// "Bearer <token>". Any other shape (empty header, wrong scheme, missing
// token) yields ok=false.
func ExtractBearer(headerValue string) (string, bool) {
	if headerValue == "" {
		return "", false
	}
	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
