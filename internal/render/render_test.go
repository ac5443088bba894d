package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsweep/internal/logging"
	"dirsweep/internal/model"
)

func sample() []model.PathResult {
	return []model.PathResult{
		{Path: "/tmp/a", Status: model.StatusDeleted, EmptyVerified: true, Deleted: true, Duration: time.Millisecond},
		{Path: "/tmp/b", Status: model.StatusSkipped, Reason: model.ReasonNotEmpty},
		{Path: "/tmp/c", Status: model.StatusError, Reason: model.ReasonIOError, Message: "input/output error"},
	}
}

func TestPlainVerbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		want      []string
		notWant   []string
	}{
		{"quiet", logging.Quiet, []string{"/tmp/c"}, []string{"/tmp/a", "/tmp/b"}},
		{"normal", logging.Normal, []string{"/tmp/a", "/tmp/c"}, []string{"/tmp/b"}},
		{"verbose", logging.Verbose, []string{"/tmp/a", "/tmp/b", "/tmp/c"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPlain(&buf, tt.verbosity, true)
			for _, r := range sample() {
				require.NoError(t, p.Accept(r))
			}
			require.NoError(t, p.Complete(model.Summary{Total: 3, Deleted: 1, Skipped: 1, Errors: 1}))

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
			assert.Contains(t, out, "total=3 deleted=1 skipped=1 errors=1")
		})
	}
}

func TestPlainWithoutSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, logging.Normal, false)
	require.NoError(t, p.Complete(model.Summary{Total: 1}))
	assert.Empty(t, buf.String())
}

func TestFormatResult(t *testing.T) {
	r := sample()[2]
	assert.Equal(t, "error   /tmp/c (io_error): input/output error", FormatResult(r))
	assert.Equal(t, "deleted /tmp/a", FormatResult(sample()[0]))
}

func TestFormatSummaryInterrupted(t *testing.T) {
	line := FormatSummary(model.Summary{Total: 2, Deleted: 2, Interrupted: true, Unprocessed: 5})
	assert.True(t, strings.HasSuffix(line, "interrupted unprocessed=5"), line)
}

func TestLiveModelCounts(t *testing.T) {
	var m tea.Model = NewLiveModel(nil, 4, nil)
	for _, r := range sample() {
		m, _ = m.Update(resultMsg(r))
	}

	lm := m.(LiveModel)
	assert.Equal(t, 3, lm.done)
	assert.Equal(t, 1, lm.deleted)
	assert.Equal(t, 1, lm.skipped)
	assert.Equal(t, 1, lm.errors)
	assert.InDelta(t, 0.75, lm.Fraction(), 1e-9)
	require.Len(t, lm.recent, 3)
	assert.Equal(t, "/tmp/c", lm.recent[0][3], "newest result first")

	view := lm.View()
	assert.Contains(t, view, "3/4")
	assert.Contains(t, view, "ctrl+c to stop")
}

func TestLiveModelRecentIsBounded(t *testing.T) {
	var m tea.Model = NewLiveModel(nil, 50, nil)
	for i := 0; i < 25; i++ {
		m, _ = m.Update(resultMsg(model.PathResult{Path: "/x", Status: model.StatusDeleted}))
	}
	assert.Len(t, m.(LiveModel).recent, recentRows)
}

func TestLiveModelCtrlCCancelsOnce(t *testing.T) {
	calls := 0
	var m tea.Model = NewLiveModel(nil, 1, func() { calls++ })
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Equal(t, 1, calls)
	assert.Contains(t, m.View(), "Interrupting")
}

func TestLiveModelSummaryQuits(t *testing.T) {
	var m tea.Model = NewLiveModel(nil, 1, nil)
	m, cmd := m.Update(summaryMsg(model.Summary{Total: 1, Deleted: 1}))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "total=1 deleted=1")
}

func TestLiveModelEmptyRun(t *testing.T) {
	m := NewLiveModel(nil, 0, nil)
	assert.Equal(t, 1.0, m.Fraction())
}
