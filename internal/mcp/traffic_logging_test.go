package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPayload(t *testing.T) {
	require.Equal(t, "<nil>", formatPayload(nil))
	require.Equal(t, `{"a":1}`, formatPayload(map[string]int{"a": 1}))
	require.Equal(t, "chan int", formatPayload(make(chan int)))

	long := formatPayload(strings.Repeat("x", 3*maxLoggedPayload))
	require.True(t, strings.HasSuffix(long, "bytes)"))
	require.Less(t, len(long), maxLoggedPayload+32)
}
