package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap(nil, CodeConfig, "x"))
}

func TestWrapPreservesCauseAndSeverity(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CodeInvariant, "panic recovered")
	require.ErrorIs(t, err, cause)
	require.Equal(t, SeverityCritical, err.Severity)
	require.True(t, IsCritical(err))
}

func TestIsCriticalFalseForLowSeverity(t *testing.T) {
	err := New(CodeReplay, "bad row")
	require.False(t, IsCritical(err))
}
