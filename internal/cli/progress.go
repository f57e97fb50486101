package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/taxonomist/internal/service"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressMsg carries one classification progress event.
type progressMsg service.Progress

// doneMsg signals the end of the classify run.
type doneMsg struct {
	result *service.ClassifyResult
	err    error
}

// progressModel is the bubbletea model for classification progress.
type progressModel struct {
	cancel   context.CancelFunc
	last     service.Progress
	progress progress.Model
	theme    Theme
	result   *service.ClassifyResult
	done     bool
	quitting bool
	err      error
}

func newProgressModel(cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop dispatching; the run finishes its in-flight records
			// and reports back through doneMsg.
			m.quitting = true
			m.cancel()
		}

	case progressMsg:
		m.last = service.Progress(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.last.Total == 0 {
		return m.theme.statusStyle().Render("[discovering labels]") + "\n"
	}

	pct := float64(m.last.Done) / float64(m.last.Total)
	status := m.theme.statusStyle().Render("[classifying]")
	if m.quitting {
		status = m.theme.statusStyle().Render("[stopping]")
	}
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d questions", m.last.Done, m.last.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop; rerun with --resume to continue")

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting || errors.Is(m.err, context.Canceled) {
		return m.theme.hintStyle().Render("Stopped. Rerun with --resume to continue.") + "\n"
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Classification failed: %s", m.err)) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Completed"))
	b.WriteString("\n")
	if m.result != nil {
		fmt.Fprintf(&b, "  Records written: %d\n", m.result.Written)
		fmt.Fprintf(&b, "  Clusters:        %d\n", m.result.Clusters)
	}
	return b.String()
}

// runClassifyWithProgress runs fn while rendering a progress bar on the
// terminal. fn receives the progress callback and a context that is
// cancelled when the user presses Ctrl+C.
func runClassifyWithProgress(ctx context.Context, fn func(ctx context.Context, onProgress func(service.Progress)) (*service.ClassifyResult, error)) (*service.ClassifyResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(cancel))

	go func() {
		result, err := fn(runCtx, func(pr service.Progress) {
			p.Send(progressMsg(pr))
		})
		p.Send(doneMsg{result: result, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(progressModel)
	if !ok {
		return nil, fmt.Errorf("progress UI returned unexpected model")
	}
	return m.result, m.err
}
