package audit

import "strings"

// maskIPv4 masks an IPv4 address as "a.b.*.**" (spec §4.6). Addresses
// that don't parse as dotted-quad IPv4 (including IPv6) are returned
// unchanged — masking those is a non-goal of the reference behavior.
func maskIPv4(addr string) string {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return addr
	}
	return parts[0] + "." + parts[1] + ".*.**"
}

// maskUsername shows the first two and last character of usernames
// longer than 4 characters, unchanged otherwise (spec §4.6).
func maskUsername(username string) string {
	if len(username) <= 4 {
		return username
	}
	runes := []rune(username)
	return string(runes[:2]) + strings.Repeat("*", len(runes)-3) + string(runes[len(runes)-1])
}

// maskToken shows the first and last 10 characters of a credential,
// masking the middle (spec §4.2's "tokens are masked... when audited").
func maskToken(token string) string {
	const keep = 10
	if len(token) <= keep*2 {
		return strings.Repeat("*", len(token))
	}
	return token[:keep] + "..." + token[len(token)-keep:]
}
