package secure

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	require.True(t, Valid(CPPixel))
	require.True(t, Valid(CPCDSP))
	require.False(t, Valid(None))
	require.False(t, Valid(HLOS))
	require.False(t, Valid(Last))
	require.False(t, Valid(VMID(-1)))

	all := All()
	require.Len(t, all, 12)
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1], all[i])
	}
}

func TestParse(t *testing.T) {
	v, err := Parse("cp-pixel")
	require.NoError(t, err)
	require.Equal(t, CPPixel, v)

	v, err = Parse("13")
	require.NoError(t, err)
	require.Equal(t, CPCamera, v)

	_, err = Parse("nope")
	require.Error(t, err)
	require.Equal(t, "vmid(5)", VMID(5).String())
}

func TestLedgerAssignUnassign(t *testing.T) {
	l := NewLedger()
	spans := []Span{{Addr: 0x1000, Len: 0x2000}, {Addr: 0x8000, Len: 0x1000}}

	require.NoError(t, l.Assign(CPPixel, spans))
	require.Equal(t, 3, l.OwnedPages(CPPixel))
	owner, ok := l.Owner(0x2abc)
	require.True(t, ok)
	require.Equal(t, CPPixel, owner)

	err := l.Assign(CPCamera, []Span{{Addr: 0x2000, Len: 0x1000}})
	require.ErrorIs(t, err, ErrRejected, "double assignment")

	err = l.Unassign(CPCamera, spans)
	require.ErrorIs(t, err, ErrRejected, "wrong owner")
	require.Equal(t, 3, l.OwnedPages(CPPixel), "failed unassign must not change ownership")

	require.NoError(t, l.Unassign(CPPixel, spans[:1]))
	require.Equal(t, 1, l.OwnedPages(CPPixel))
}

func TestLedgerRejectsHostVMID(t *testing.T) {
	l := NewLedger()
	require.ErrorIs(t, l.Assign(HLOS, []Span{{Addr: 0, Len: 0x1000}}), ErrRejected)
}

func TestLedgerFailNext(t *testing.T) {
	l := NewLedger()
	l.FailNext(OpAssign, 1)
	span := []Span{{Addr: 0x4000, Len: 0x1000}}

	require.ErrorIs(t, l.Assign(CPApp, span), ErrRejected)
	require.Zero(t, l.OwnedPages(CPApp))
	require.NoError(t, l.Assign(CPApp, span))
	require.Equal(t, 2, l.Calls(OpAssign))
}
