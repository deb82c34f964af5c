package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// progressMsg reports images processed so far.
type progressMsg struct {
	done, total int
}

// progressDoneMsg ends the progress display.
type progressDoneMsg struct{}

// progressModel renders a single progress bar for the embedding stage.
type progressModel struct {
	bar   progress.Model
	done  int
	total int
}

func newProgressModel() progressModel {
	return progressModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.done, m.total = msg.done, msg.total
		return m, nil
	case progressDoneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	return fmt.Sprintf("Embedding images %s %d/%d\n", m.bar.ViewAs(m.percent()), m.done, m.total)
}

func (m progressModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// progressReporter drives a progress bar while a long operation runs.
type progressReporter struct {
	program *tea.Program
	done    chan struct{}
}

// startProgress starts a progress bar on w when it is a terminal.
// It returns nil otherwise; a nil reporter ignores every call.
func startProgress(w io.Writer) *progressReporter {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(int(f.Fd())) {
		return nil
	}

	p := tea.NewProgram(newProgressModel(), tea.WithOutput(w), tea.WithInput(nil))
	r := &progressReporter{program: p, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		_, _ = p.Run()
	}()
	return r
}

// Update is an IngestOptions.Progress callback.
func (r *progressReporter) Update(done, total int) {
	if r == nil {
		return
	}
	r.program.Send(progressMsg{done: done, total: total})
}

// Stop removes the bar and waits for the program to exit.
func (r *progressReporter) Stop() {
	if r == nil {
		return
	}
	r.program.Send(progressDoneMsg{})
	<-r.done
}
