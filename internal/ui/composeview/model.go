// Package composeview renders live composition progress in the terminal.
package composeview

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/ui/components"
	"github.com/examforge/examforge/internal/ui/theme"
)

const (
	defaultWidth = 72
	maxLogLines  = 6
)

type runStartedMsg struct {
	runID    string
	spec     exam.Spec
	sections []exam.SectionSpec
}

type slotMsg compose.SlotEvent

type runFinishedMsg struct {
	err error
}

// doneMsg is sent once Compose has returned, whether or not the observer saw
// the run start.
type doneMsg struct{}

type sectionView struct {
	name      string
	total     int
	generated int
	fallback  int
	active    map[int]compose.SlotState
}

// Model is the Bubble Tea model for one composition run.
type Model struct {
	spec     exam.Spec
	runID    string
	sections []*sectionView
	index    map[string]int
	log      []string
	spinner  spinner.Model
	width    int

	cancel    func()
	canceling bool
	finished  bool
	err       error
}

// New returns a model for spec. cancel is called when the user interrupts
// the run.
func New(spec exam.Spec, cancel func()) Model {
	if cancel == nil {
		cancel = func() {}
	}
	return Model{
		spec:    spec,
		index:   make(map[string]int),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:   defaultWidth,
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = min(msg.Width, 120)
		}
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.canceling {
				return m, tea.Quit
			}
			m.canceling = true
			m.cancel()
		}
		return m, nil

	case runStartedMsg:
		m.start(msg)
		return m, nil

	case slotMsg:
		m.apply(compose.SlotEvent(msg))
		return m, nil

	case runFinishedMsg:
		m.finished = true
		m.err = msg.err
		return m, nil

	case doneMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) start(msg runStartedMsg) {
	m.runID = msg.runID
	m.spec = msg.spec
	m.sections = m.sections[:0]
	clear(m.index)
	for i, s := range msg.sections {
		m.sections = append(m.sections, &sectionView{
			name:   s.Name,
			total:  s.Count,
			active: make(map[int]compose.SlotState),
		})
		m.index[s.Name] = i
	}
}

func (m *Model) apply(ev compose.SlotEvent) {
	i, ok := m.index[ev.Section]
	if !ok {
		return
	}
	sv := m.sections[i]
	switch ev.State {
	case compose.StateAccepted:
		sv.generated++
		delete(sv.active, ev.Slot)
	case compose.StateFallbackToCorpus:
		sv.fallback++
		delete(sv.active, ev.Slot)
		m.note(theme.Fallback, ev, "corpus fallback")
	case compose.StateUnfillable:
		delete(sv.active, ev.Slot)
		m.note(theme.Failed, ev, "unfillable")
	case compose.StateRetrying:
		sv.active[ev.Slot] = ev.State
		m.note(theme.Retrying, ev, "retry")
	default:
		sv.active[ev.Slot] = ev.State
	}
}

type renderer interface{ Render(...string) string }

func (m *Model) note(style renderer, ev compose.SlotEvent, what string) {
	line := fmt.Sprintf("%s slot %d: %s", ev.Section, ev.Slot, what)
	if ev.Reason != "" {
		line += " (" + ev.Reason + ")"
	}
	m.log = append(m.log, style.Render(truncate(line, m.width)))
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m Model) View() tea.View {
	return tea.NewView(m.Render())
}

// Render returns the current frame as text.
func (m Model) Render() string {
	var b strings.Builder

	title := "Composing " + m.spec.String()
	if !m.finished {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(theme.Title.Render(title))
	b.WriteString("\n")
	if m.runID != "" {
		b.WriteString(theme.Subtitle.Render("run " + m.runID))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	labelSize := 0
	for _, sv := range m.sections {
		labelSize = max(labelSize, len(sv.name))
	}
	for _, sv := range m.sections {
		bar := components.ProgressBar{
			Label:     sv.name,
			LabelSize: labelSize,
			Total:     sv.total,
			Generated: sv.generated,
			Fallback:  sv.fallback,
			Width:     m.width,
		}
		b.WriteString(bar.View())
		if n := len(sv.active); n > 0 && !m.finished {
			b.WriteString(theme.Hint.Render(fmt.Sprintf("  %d in flight", n)))
		}
		b.WriteString("\n")
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.finished && m.err != nil:
		b.WriteString(theme.Failed.Render(truncate("failed: "+m.err.Error(), m.width)))
	case m.finished:
		gen, fb := m.totals()
		b.WriteString(theme.Generated.Render(fmt.Sprintf("done: %d generated, %d from corpus", gen, fb)))
	case m.canceling:
		b.WriteString(theme.Hint.Render("canceling, waiting for in-flight calls..."))
	default:
		b.WriteString(theme.Hint.Render("ctrl+c to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) totals() (generated, fallback int) {
	for _, sv := range m.sections {
		generated += sv.generated
		fallback += sv.fallback
	}
	return generated, fallback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
