package edge

import (
	"regexp"
	"strings"
)

var suspiciousAgentRe = regexp.MustCompile(`(?i)(bot|crawler|spider|scanner)`)

// suspiciousUserAgent reports whether the agent string is empty or
// matches the suspicious-agent pattern set (spec §4.1 step 5).
func suspiciousUserAgent(agent string) bool {
	if strings.TrimSpace(agent) == "" {
		return true
	}
	return suspiciousAgentRe.MatchString(agent)
}

var traversalMarkers = []string{"../", "..\\", "%2e%2e", "....//"}

// pathTraversal reports whether path contains an obvious traversal
// attempt (spec §4.1 step 6, first clause).
func pathTraversal(path string) bool {
	lower := strings.ToLower(path)
	for _, m := range traversalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var suspiciousSubstrings = []string{"passwd", "shadow"}

// suspiciousPath reports whether path has a dot-prefixed segment, a
// "__" component, or references passwd/shadow (spec §4.1 step 6, second
// clause).
func suspiciousPath(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range suspiciousSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ".") || strings.Contains(seg, "__") {
			return true
		}
	}

	return false
}
