package apps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"oleo", "%oleo%"},
		{"50%", `%50\%%`},
		{"base_a", `%base\_a%`},
		{`a\b`, `%a\\b%`},
		{"", "%%"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ContainsPattern(tt.in), tt.in)
	}
}
