package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dirsweep/internal/model"
)

const (
	recentRows   = 10
	defaultWidth = 100
)

// resultMsg carries one result into the program.
type resultMsg model.PathResult

// summaryMsg ends the program.
type summaryMsg model.Summary

// LiveModel is the bubbletea model behind the live view.
type LiveModel struct {
	theme  *Theme
	total  int
	cancel func()

	done    int
	deleted int
	skipped int
	errors  int

	recent     []table.Row
	table      table.Model
	bar        progress.Model
	width      int
	cancelling bool
	summary    *model.Summary
}

// NewLiveModel creates the model for a run of total candidates. cancel is
// invoked once when the operator presses ctrl+c.
func NewLiveModel(theme *Theme, total int, cancel func()) LiveModel {
	if theme == nil {
		theme = DefaultTheme()
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = defaultWidth - 4
	return LiveModel{
		theme:  theme,
		total:  total,
		cancel: cancel,
		table:  newResultTable(theme, defaultWidth-8, recentRows),
		bar:    bar,
		width:  defaultWidth,
	}
}

// Init implements tea.Model.
func (m LiveModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		inner := max(msg.Width-4, 48)
		m.bar.Width = inner
		// the box border and padding take four columns
		m.table.SetColumns(resultColumns(inner - 4))
		m.table.SetWidth(inner - 4)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case resultMsg:
		r := model.PathResult(msg)
		m.done++
		switch r.Status {
		case model.StatusDeleted:
			m.deleted++
		case model.StatusError:
			m.errors++
		default:
			m.skipped++
		}
		row := table.Row{
			string(r.Status),
			string(r.Reason),
			strconv.FormatFloat(r.DurationMs(), 'f', 2, 64),
			r.Path,
		}
		m.recent = append([]table.Row{row}, m.recent...)
		if len(m.recent) > recentRows {
			m.recent = m.recent[:recentRows]
		}
		m.table.SetRows(m.recent)

	case summaryMsg:
		s := model.Summary(msg)
		m.summary = &s
		return m, tea.Quit
	}

	return m, nil
}

// Fraction is the share of candidates with a result.
func (m LiveModel) Fraction() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

// View implements tea.Model.
func (m LiveModel) View() string {
	t := m.theme

	counters := lipgloss.JoinHorizontal(
		lipgloss.Top,
		t.Badge.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
		" ",
		t.SuccessStyle.Render(fmt.Sprintf("deleted %d", m.deleted)),
		"  ",
		t.WarningStyle.Render(fmt.Sprintf("skipped %d", m.skipped)),
		"  ",
		t.ErrorStyle.Render(fmt.Sprintf("errors %d", m.errors)),
	)

	var footer string
	switch {
	case m.summary != nil:
		footer = t.Title.Render(FormatSummary(*m.summary))
	case m.cancelling:
		footer = t.WarningStyle.Render("Interrupting: finishing paths in progress...")
	default:
		footer = t.Subtle.Render("ctrl+c to stop")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		t.Title.Render("dirsweep"),
		counters,
		m.bar.ViewAs(m.Fraction()),
		t.Box.Render(m.table.View()),
		footer,
	) + "\n"
}

// Live drives a bubbletea program from the result stream.
type Live struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewLive starts the live view writing to out. A nil in disables keyboard
// input; ctrl+c then arrives as a signal to the caller instead.
func NewLive(out io.Writer, in io.Reader, total int, cancel func()) *Live {
	m := NewLiveModel(DefaultTheme(), total, cancel)
	// signals are handled by the caller, which owns the run context
	opts := []tea.ProgramOption{
		tea.WithOutput(out),
		tea.WithInput(in),
		tea.WithoutSignalHandler(),
	}
	l := &Live{
		program: tea.NewProgram(m, opts...),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		_, l.err = l.program.Run()
	}()
	return l
}

// Accept forwards a result to the program.
func (l *Live) Accept(r model.PathResult) error {
	l.program.Send(resultMsg(r))
	return nil
}

// Complete shows the summary and waits for the program to exit.
func (l *Live) Complete(s model.Summary) error {
	l.program.Send(summaryMsg(s))
	<-l.done
	return l.err
}
