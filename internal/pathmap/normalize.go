package pathmap

import (
	"fmt"
	"regexp"
	"strings"
)

var driveLetterRe = regexp.MustCompile(`(?i)^[a-z]:[\\/]`)

// Normalize implements spec §4.4's path normalization: percent-decoding
// is left to the HTTP layer. Collapse repeated slashes, strip a
// trailing slash except for the root, and reject "." / ".." segments
// and absolute Windows-style drive letters.
func Normalize(p string) (string, error) {
	if p == "" {
		p = "/"
	}

	if driveLetterRe.MatchString(p) {
		return "", fmt.Errorf("%w: windows drive-letter path %q", ErrBadPath, p)
	}

	var collapsed strings.Builder
	lastSlash := false
	for _, r := range p {
		if r == '/' {
			if lastSlash {
				continue
			}
			lastSlash = true
		} else {
			lastSlash = false
		}
		collapsed.WriteRune(r)
	}
	out := collapsed.String()

	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}

	if out != "/" {
		out = strings.TrimSuffix(out, "/")
	}

	for _, seg := range strings.Split(out, "/") {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: dotted segment in %q", ErrBadPath, p)
		}
	}

	return out, nil
}

// ErrBadPath marks a path rejected during normalization (spec §7
// BAD_REQUEST).
var ErrBadPath = fmt.Errorf("pathmap: malformed path")

// StripPrefix removes the fixed WebDAV prefix (e.g. "/dav") from a
// normalized path, returning the remainder rooted at "/". Returns
// false if p is not under prefix.
func StripPrefix(p, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return p, true
	}
	if p == prefix {
		return "/", true
	}
	if !strings.HasPrefix(p, prefix+"/") {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" {
		rest = "/"
	}
	return rest, true
}

// ToInternal builds the backend-facing internal path "/<user-id>/rest"
// from a normalized, prefix-stripped WebDAV path (spec §4.4 step 1).
func ToInternal(webdavRest string, userID uint64) string {
	webdavRest = strings.TrimPrefix(webdavRest, "/")
	if webdavRest == "" {
		return fmt.Sprintf("/%d", userID)
	}
	return fmt.Sprintf("/%d/%s", userID, webdavRest)
}

// Segments splits a normalized internal path into its non-empty
// components, e.g. "/1/a/b" -> ["1", "a", "b"].
func Segments(internalPath string) []string {
	trimmed := strings.Trim(internalPath, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
