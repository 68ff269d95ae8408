package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/treeclimb/internal/registry"
)

func TestFormat(t *testing.T) {
	testCases := []struct {
		leaf     registry.Leaf
		expected string
	}{
		{registry.Leaf{Path: "a.b", Value: "c"}, `a.b = "c"`},
		{registry.Leaf{Path: "n", Value: 42}, `n = 42`},
		{registry.Leaf{Path: "x", Value: nil}, `x = <nil>`},
		{registry.Leaf{Path: "", Value: true}, `<root> = true`},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Format(tc.leaf))
	}
}

func TestSink_WritesLines(t *testing.T) {
	var buf bytes.Buffer
	r := registry.New()
	(&Module{}).Register(r)

	factory := r.Names()
	require.Equal(t, []string{"print"}, factory)

	s := New(&buf)
	out, err := s.Visit(context.Background(), registry.Leaf{Path: "a", Value: "b"})
	require.NoError(t, err)
	assert.Equal(t, `a = "b"`, out)
	_, err = s.Visit(context.Background(), registry.Leaf{Path: "c.0", Value: 1.5})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, "a = \"b\"\nc.0 = 1.5\n", buf.String())
}
