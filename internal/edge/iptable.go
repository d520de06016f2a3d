// Package edge implements the Security Gate: IP allow/deny evaluation,
// sliding-window rate limiting, and request-shape heuristics, invoked
// uniformly from both the HTTP and RPC ingress paths (spec §4.1).
package edge

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ipRange is a derived, comparable representation of a CIDR, dashed
// range, or bare address. start/end are the 16-byte (v4-mapped for v4)
// big-endian forms, so membership is a lexicographic byte comparison —
// equivalent to unsigned 128-bit integer comparison for fixed-width
// addresses of the same family.
type ipRange struct {
	start, end [16]byte
	isIPv6     bool
}

func addrBytes(a netip.Addr) [16]byte {
	return a.As16()
}

// parseIPRange accepts a CIDR ("a.b.c.d/n"), a dashed range ("a.b.c.d-a.b.c.e"),
// or a bare address, and derives its [start,end] bounds once.
func parseIPRange(spec string) (ipRange, error) {
	spec = strings.TrimSpace(spec)

	if strings.Contains(spec, "/") {
		prefix, err := netip.ParsePrefix(spec)
		if err != nil {
			return ipRange{}, fmt.Errorf("invalid CIDR %q: %w", spec, err)
		}
		bits := prefix.Bits()
		maxBits := 32
		if prefix.Addr().Is6() {
			maxBits = 128
		}
		if bits < 0 || bits > maxBits {
			return ipRange{}, fmt.Errorf("invalid prefix length %d for %q", bits, spec)
		}
		return rangeFromPrefix(prefix), nil
	}

	if i := strings.Index(spec, "-"); i > 0 {
		startAddr, err := netip.ParseAddr(strings.TrimSpace(spec[:i]))
		if err != nil {
			return ipRange{}, fmt.Errorf("invalid range start %q: %w", spec, err)
		}
		endAddr, err := netip.ParseAddr(strings.TrimSpace(spec[i+1:]))
		if err != nil {
			return ipRange{}, fmt.Errorf("invalid range end %q: %w", spec, err)
		}
		if startAddr.Is4() != endAddr.Is4() {
			return ipRange{}, fmt.Errorf("range %q mixes address families", spec)
		}
		r := ipRange{start: addrBytes(startAddr), end: addrBytes(endAddr), isIPv6: !startAddr.Is4()}
		if bytesCompare(r.start, r.end) > 0 {
			return ipRange{}, fmt.Errorf("range %q has start > end", spec)
		}
		return r, nil
	}

	addr, err := netip.ParseAddr(spec)
	if err != nil {
		return ipRange{}, fmt.Errorf("invalid address %q: %w", spec, err)
	}
	b := addrBytes(addr)
	return ipRange{start: b, end: b, isIPv6: !addr.Is4()}, nil
}

func rangeFromPrefix(prefix netip.Prefix) ipRange {
	addr := prefix.Addr()
	bits := prefix.Bits()
	isIPv6 := addr.Is6() && !addr.Is4In6()

	totalBits := 32
	if isIPv6 {
		totalBits = 128
	}

	base := addr.As16()
	offset := 16 - totalBits/8
	start := base
	end := base

	hostBits := totalBits - bits
	// Zero the host bits for start, set them for end, walking from the
	// last relevant byte backward.
	remaining := hostBits
	for i := 15; i >= offset && remaining > 0; i-- {
		if remaining >= 8 {
			start[i] = 0
			end[i] = 0xff
			remaining -= 8
		} else {
			mask := byte(0xff) << uint(remaining)
			start[i] &= mask
			end[i] |= ^mask
			remaining = 0
		}
	}

	return ipRange{start: start, end: end, isIPv6: isIPv6}
}

func bytesCompare(a, b [16]byte) int {
	for i := 0; i < 16; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (r ipRange) contains(addr netip.Addr) bool {
	isIPv6 := addr.Is6() && !addr.Is4In6()
	if isIPv6 != r.isIPv6 {
		return false
	}
	b := addrBytes(addr)
	return bytesCompare(r.start, b) <= 0 && bytesCompare(b, r.end) <= 0
}

// privateRanges are the loopback and RFC1918/ULA ranges implicitly part
// of any whitelist (spec §4.1).
var privateRanges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
}

// IPTable holds the allow/deny lists and a membership lookup cache that
// is invalidated wholesale on any mutation.
type IPTable struct {
	mu               sync.RWMutex
	whitelistEnabled bool
	whitelist        []ipRange
	blacklist        []ipRange

	cacheMu sync.Mutex
	cache   *lru.Cache[string, bool]
}

// NewIPTable builds an IPTable from configured CIDR/range/address specs.
// Malformed entries are skipped; callers that need validation errors
// should validate config at load time instead.
func NewIPTable(whitelistEnabled bool, whitelistSpecs, blacklistSpecs []string) *IPTable {
	t := &IPTable{whitelistEnabled: whitelistEnabled}
	t.Reload(whitelistEnabled, whitelistSpecs, blacklistSpecs)
	return t
}

// Reload replaces the allow/deny lists and invalidates the lookup cache.
// Safe to call concurrently with Check.
func (t *IPTable) Reload(whitelistEnabled bool, whitelistSpecs, blacklistSpecs []string) {
	whitelist := make([]ipRange, 0, len(whitelistSpecs)+len(privateRanges))
	for _, spec := range privateRanges {
		if r, err := parseIPRange(spec); err == nil {
			whitelist = append(whitelist, r)
		}
	}
	for _, spec := range whitelistSpecs {
		if r, err := parseIPRange(spec); err == nil {
			whitelist = append(whitelist, r)
		}
	}

	blacklist := make([]ipRange, 0, len(blacklistSpecs))
	for _, spec := range blacklistSpecs {
		if r, err := parseIPRange(spec); err == nil {
			blacklist = append(blacklist, r)
		}
	}

	cache, _ := lru.New[string, bool](10_000)

	t.mu.Lock()
	t.whitelistEnabled = whitelistEnabled
	t.whitelist = whitelist
	t.blacklist = blacklist
	t.mu.Unlock()

	t.cacheMu.Lock()
	t.cache = cache
	t.cacheMu.Unlock()
}

// IsWhitelisted reports whether addr is permitted by the allow-list.
// When the whitelist is disabled, every address is considered permitted.
func (t *IPTable) IsWhitelisted(addrStr string) bool {
	t.mu.RLock()
	enabled := t.whitelistEnabled
	ranges := t.whitelist
	t.mu.RUnlock()

	if !enabled {
		return true
	}

	return t.lookup("wl:"+addrStr, addrStr, ranges)
}

// AddToBlacklist appends a single address to the deny-list without
// disturbing the rest of the table, for the audit service's
// auto-blacklist-after-N-critical-events hook (spec §4.6).
func (t *IPTable) AddToBlacklist(addrStr string) {
	r, err := parseIPRange(addrStr)
	if err != nil {
		return
	}

	t.mu.Lock()
	t.blacklist = append(t.blacklist, r)
	t.mu.Unlock()

	cache, _ := lru.New[string, bool](10_000)
	t.cacheMu.Lock()
	t.cache = cache
	t.cacheMu.Unlock()
}

// IsBlacklisted reports whether addr matches the deny-list.
func (t *IPTable) IsBlacklisted(addrStr string) bool {
	t.mu.RLock()
	ranges := t.blacklist
	t.mu.RUnlock()

	return t.lookup("bl:"+addrStr, addrStr, ranges)
}

func (t *IPTable) lookup(cacheKey, addrStr string, ranges []ipRange) bool {
	t.cacheMu.Lock()
	cache := t.cache
	t.cacheMu.Unlock()

	if cache != nil {
		if v, ok := cache.Get(cacheKey); ok {
			return v
		}
	}

	addr, err := netip.ParseAddr(addrStr)
	if err != nil {
		return false
	}

	result := false
	for _, r := range ranges {
		if r.contains(addr) {
			result = true
			break
		}
	}

	if cache != nil {
		cache.Add(cacheKey, result)
	}
	return result
}
