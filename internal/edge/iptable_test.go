package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPTable_WhitelistCIDR(t *testing.T) {
	tbl := NewIPTable(true, []string{"10.0.0.0/8"}, nil)

	assert.True(t, tbl.IsWhitelisted("10.0.0.5"))
	assert.True(t, tbl.IsWhitelisted("10.255.255.255"))
	assert.False(t, tbl.IsWhitelisted("11.0.0.1"))

	// implicit loopback/RFC1918 ranges remain whitelisted
	assert.True(t, tbl.IsWhitelisted("127.0.0.1"))
	assert.True(t, tbl.IsWhitelisted("192.168.1.1"))
}

func TestIPTable_WhitelistDisabledAllowsEverything(t *testing.T) {
	tbl := NewIPTable(false, []string{"10.0.0.0/8"}, nil)
	assert.True(t, tbl.IsWhitelisted("8.8.8.8"))
}

func TestIPTable_Blacklist(t *testing.T) {
	tbl := NewIPTable(false, nil, []string{"1.2.3.4", "5.6.7.0-5.6.7.255"})
	assert.True(t, tbl.IsBlacklisted("1.2.3.4"))
	assert.False(t, tbl.IsBlacklisted("1.2.3.5"))
	assert.True(t, tbl.IsBlacklisted("5.6.7.100"))
	assert.False(t, tbl.IsBlacklisted("5.6.8.1"))
}

func TestIPTable_SlashZeroMatchesEveryAddressOfFamily(t *testing.T) {
	tbl := NewIPTable(true, []string{"0.0.0.0/0"}, nil)
	assert.True(t, tbl.IsWhitelisted("1.2.3.4"))
	assert.True(t, tbl.IsWhitelisted("255.255.255.255"))
	// cross-family: a v6 address should not match a v4 /0
	assert.False(t, tbl.IsWhitelisted("2001:db8::1"))
}

func TestIPTable_SlashThirtyTwoMatchesExactlyOne(t *testing.T) {
	tbl := NewIPTable(true, []string{"203.0.113.7/32"}, nil)
	assert.True(t, tbl.IsWhitelisted("203.0.113.7"))
	assert.False(t, tbl.IsWhitelisted("203.0.113.8"))
}

func TestIPTable_IPv6Prefix(t *testing.T) {
	tbl := NewIPTable(true, []string{"2001:db8::/32"}, nil)
	assert.True(t, tbl.IsWhitelisted("2001:db8::1"))
	assert.False(t, tbl.IsWhitelisted("2001:db9::1"))
}

func TestIPTable_ReloadInvalidatesCache(t *testing.T) {
	tbl := NewIPTable(true, []string{"10.0.0.0/8"}, nil)
	assert.False(t, tbl.IsWhitelisted("20.0.0.1"))

	tbl.Reload(true, []string{"20.0.0.0/8"}, nil)
	assert.True(t, tbl.IsWhitelisted("20.0.0.1"))
}
