package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("allocate: %w", ErrSecureUnsupported)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrKindInvalidArgument, kind)
	require.ErrorIs(t, err, ErrSecureUnsupported)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestWrapKeepsSentinelAndCause(t *testing.T) {
	cause := errors.New("authority said no")
	err := Wrap(ErrOwnershipTransfer, cause)

	require.ErrorIs(t, err, ErrOwnershipTransfer)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrNoMemory)
	require.Equal(t, "ownership transfer failed: authority said no", err.Error())

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrKindOwnership, kind)
}

func TestWrapAs(t *testing.T) {
	cause := errors.New("vm gone")
	err := fmt.Errorf("free: %w", Wrap(ErrOwnershipTransfer, cause))

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, ErrKindOwnership, e.Kind)
	require.Same(t, cause, e.Err)
	require.NotSame(t, ErrOwnershipTransfer, e, "sentinel must not be mutated")
	require.Nil(t, ErrOwnershipTransfer.Err)
	require.Same(t, cause, errors.Unwrap(errors.Unwrap(err)))
}

func TestFlagsString(t *testing.T) {
	require.Equal(t, "none", Flags(0).String())
	require.Equal(t, "cached|force-alloc", (FlagCached | FlagPoolForceAlloc).String())
	require.True(t, (FlagCached | FlagPoolForceAlloc).Has(FlagCached))
	require.False(t, FlagCached.Has(FlagPoolForceAlloc))
}
