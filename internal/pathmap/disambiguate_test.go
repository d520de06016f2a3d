package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisambiguate(t *testing.T) {
	in := []string{"report.txt", "report.txt", "report.txt", "summary"}
	want := []string{"report.txt", "report (2).txt", "report (3).txt", "summary"}
	assert.Equal(t, want, Disambiguate(in))
}

func TestDisambiguate_NoExtension(t *testing.T) {
	in := []string{"notes", "notes"}
	want := []string{"notes", "notes (2)"}
	assert.Equal(t, want, Disambiguate(in))
}

func TestDisambiguate_Cardinality(t *testing.T) {
	in := []string{"a", "a", "b", "a", "b", "c"}
	out := Disambiguate(in)
	assert.Len(t, out, len(in))

	seen := make(map[string]bool)
	for _, n := range out {
		assert.False(t, seen[n], "duplicate webdav name %q", n)
		seen[n] = true
	}
}
