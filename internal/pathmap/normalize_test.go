package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "/dav//docs///report.txt", want: "/dav/docs/report.txt"},
		{in: "/dav/", want: "/dav"},
		{in: "/", want: "/"},
		{in: "", want: "/"},
		{in: "/dav/../../etc/passwd", wantErr: true},
		{in: "/dav/./docs", wantErr: true},
		{in: `C:\Windows\System32`, wantErr: true},
	}

	for _, tc := range cases {
		got, err := Normalize(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	p := "/dav//docs///report.txt"
	once, err := Normalize(p)
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestStripPrefix(t *testing.T) {
	rest, ok := StripPrefix("/dav/docs/report.txt", "/dav")
	require.True(t, ok)
	assert.Equal(t, "/docs/report.txt", rest)

	rest, ok = StripPrefix("/dav", "/dav")
	require.True(t, ok)
	assert.Equal(t, "/", rest)

	_, ok = StripPrefix("/other/path", "/dav")
	assert.False(t, ok)
}

func TestToInternal(t *testing.T) {
	assert.Equal(t, "/42/docs/report.txt", ToInternal("/docs/report.txt", 42))
	assert.Equal(t, "/42", ToInternal("/", 42))
}
