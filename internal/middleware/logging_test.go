package middleware

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateForLogKeepsShortBodies(t *testing.T) {
	require.Equal(t, "short body", truncateForLog("short body"))

	exact := strings.Repeat("a", maxLoggedBodyBytes)
	require.Equal(t, exact, truncateForLog(exact))
}

func TestTruncateForLogCutsLongBodies(t *testing.T) {
	long := strings.Repeat("a", maxLoggedBodyBytes+100)
	got := truncateForLog(long)
	require.True(t, strings.HasSuffix(got, "...(truncated)"))
	require.Len(t, got, maxLoggedBodyBytes+len("...(truncated)"))
}

func TestTruncateForLogNeverSplitsRunes(t *testing.T) {
	// 用三字节字符填充，使截断点必然落在某个字符中间
	long := strings.Repeat("测", maxLoggedBodyBytes)
	got := truncateForLog(long)

	require.True(t, strings.HasSuffix(got, "...(truncated)"))
	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, len(got), maxLoggedBodyBytes+len("...(truncated)"))
}
