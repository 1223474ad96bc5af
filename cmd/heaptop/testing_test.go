package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/pkg/types"
)

// TestHelper drives a Model without a terminal.
type TestHelper struct {
	t     *testing.T
	sess  *session
	model Model
}

// NewTestHelper creates a 2048-page heap and a model watching it. The
// workload is not started.
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	opts := sessionOptions{ArenaPages: 2048, HeapBacked: true, Workload: defaultWorkloadOptions()}
	sess, err := newSession(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sess.Close()) })
	return &TestHelper{t: t, sess: sess, model: NewModel(sess)}
}

// Send delivers msg and returns the command the model produced.
func (h *TestHelper) Send(msg tea.Msg) tea.Cmd {
	updated, cmd := h.model.Update(msg)
	h.model = updated.(Model)
	return cmd
}

// SendKeyRune simulates a character key press
func (h *TestHelper) SendKeyRune(r rune) tea.Cmd {
	return h.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

// SendKey simulates a special key press
func (h *TestHelper) SendKey(k tea.KeyType) tea.Cmd {
	return h.Send(tea.KeyMsg{Type: k})
}

// Churn allocates and frees a cached buffer of the given size in pages.
func (h *TestHelper) Churn(pages int64) {
	h.t.Helper()
	buf, err := h.sess.heap.Allocate(system.Request{Size: format.PagesToBytes(pages), Flags: types.FlagCached})
	require.NoError(h.t, err)
	require.NoError(h.t, h.sess.heap.Free(buf))
}
