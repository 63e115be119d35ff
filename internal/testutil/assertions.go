package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the captured log output of a harness run contains
// msg.
func AssertLogged(t *testing.T, result *HarnessResult, msg string) {
	t.Helper()

	require.True(t,
		strings.Contains(result.LogOutput, msg),
		"expected log output to contain %q", msg,
	)
}

// AssertNotLogged checks that msg does not appear in the log output.
func AssertNotLogged(t *testing.T, result *HarnessResult, msg string) {
	t.Helper()

	require.False(t,
		strings.Contains(result.LogOutput, msg),
		"expected log output not to contain %q", msg,
	)
}
