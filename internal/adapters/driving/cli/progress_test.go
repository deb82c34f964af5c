package cli

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

func TestProgressModel_Update(t *testing.T) {
	m := newProgressModel()
	assert.Nil(t, m.Init())

	updated, cmd := m.Update(progressMsg{done: 3, total: 12})
	assert.Nil(t, cmd)

	pm, ok := updated.(progressModel)
	require.True(t, ok)
	assert.InDelta(t, 0.25, pm.percent(), 1e-9)
	assert.Contains(t, pm.View(), "3/12")
	assert.Contains(t, pm.View(), "25%")
}

func TestProgressModel_Quits(t *testing.T) {
	m := newProgressModel()

	_, cmd := m.Update(progressDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}

func TestProgressModel_ZeroTotal(t *testing.T) {
	assert.Zero(t, newProgressModel().percent())
}

func TestStartProgress_NonTerminal(t *testing.T) {
	r := startProgress(new(bytes.Buffer))
	assert.Nil(t, r)

	// A nil reporter is a no-op.
	r.Update(1, 2)
	r.Stop()
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"#", "IMAGE"}, [][]string{{"1", "beach.jpg"}, {"10", "a.jpg"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "#   IMAGE", lines[0])
	assert.Equal(t, "1   beach.jpg", lines[1])
	assert.Equal(t, "10  a.jpg", lines[2])
}

func TestStateLabel(t *testing.T) {
	assert.Contains(t, stateLabel(domain.StateDone), "DONE")
	assert.Contains(t, stateLabel(domain.StateFailed), "FAILED")
	assert.Equal(t, "BULK_LOADING", stateLabel(domain.StateBulkLoading))
}
