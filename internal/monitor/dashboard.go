// Package monitor renders a live terminal dashboard for one run.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/owera/internal/orchestrator"
	"github.com/fyrsmithlabs/owera/internal/project"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 60
	nameWidth       = 24
)

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	cellStyle = lipgloss.NewStyle().Width(6).Align(lipgloss.Center)
	nameStyle = lipgloss.NewStyle().Width(nameWidth)
)

// Model is the BubbleTea dashboard model.
type Model struct {
	title     string
	started   time.Time
	now       func() time.Time
	updates   <-chan orchestrator.Progress
	onQuit    func()
	exitOnEnd bool

	cycle     int
	maxCycles int
	snapshot  project.Snapshot
	lastEvent string
	outcome   orchestrator.Outcome
	finished  bool
	quitting  bool

	openIssues []float64
	bar        progress.Model
}

// Option configures a Model.
type Option func(*Model)

// WithQuit sets a callback invoked when the user quits, typically the
// cancel function of the run's context.
func WithQuit(fn func()) Option {
	return func(m *Model) { m.onQuit = fn }
}

// WithExitOnFinish quits the program once the run reports it finished.
func WithExitOnFinish() Option {
	return func(m *Model) { m.exitOnEnd = true }
}

// NewModel creates a dashboard that reads updates until the channel is
// closed.
func NewModel(title string, updates <-chan orchestrator.Progress, opts ...Option) Model {
	m := Model{
		title:      title,
		started:    time.Now(),
		now:        time.Now,
		updates:    updates,
		openIssues: make([]float64, 0, historySize),
		bar: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(40),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Message types
type progressMsg orchestrator.Progress
type closedMsg struct{}

// waitForProgress reads the next update from the feed.
func waitForProgress(ch <-chan orchestrator.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return progressMsg(p)
	}
}

// Init starts reading updates.
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.updates)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case progressMsg:
		m = m.apply(orchestrator.Progress(msg))
		if m.finished && m.exitOnEnd {
			return m, tea.Quit
		}
		return m, waitForProgress(m.updates)

	case closedMsg:
		m.finished = true
		if m.exitOnEnd {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m Model) apply(p orchestrator.Progress) Model {
	m.snapshot = p.Snapshot
	m.cycle = p.Cycle
	if p.MaxCycles > 0 {
		m.maxCycles = p.MaxCycles
	}
	if p.Message != "" {
		m.lastEvent = p.Message
	}

	switch p.Kind {
	case orchestrator.ProgressCycle:
		m.openIssues = appendToHistory(m.openIssues, float64(p.Snapshot.OpenIssues()))
	case orchestrator.ProgressFinished:
		m.finished = true
		m.outcome = p.Outcome
		if p.Message == "" {
			m.lastEvent = fmt.Sprintf("run finished: %s after %d cycles", p.Outcome, p.Cycle)
		}
	}
	return m
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

// outcomeBadge returns a colored badge for the run state.
func (m Model) outcomeBadge() string {
	if !m.finished {
		return warningStyle.Render("● RUNNING")
	}
	switch m.outcome {
	case orchestrator.OutcomeComplete:
		return healthyStyle.Render("✓ COMPLETE")
	case "":
		return dimStyle.Render("■ STOPPED")
	default:
		return errorStyle.Render("✗ " + strings.ToUpper(string(m.outcome)))
	}
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(" owera · "+m.title+" ") + "\n")
	cycles := fmt.Sprintf("%d", m.cycle)
	if m.maxCycles > 0 {
		cycles = fmt.Sprintf("%d/%d", m.cycle, m.maxCycles)
	}
	fmt.Fprintf(&b, "%s   %s %s   %s %s\n",
		m.outcomeBadge(),
		dimStyle.Render("Cycle:"), valueStyle.Render(cycles),
		dimStyle.Render("Elapsed:"), valueStyle.Render(FormatDuration(m.now().Sub(m.started))))

	done, total := orchestrator.Progress{Snapshot: m.snapshot}.Steps()
	ratio := 0.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	b.WriteString("\n" + sectionStyle.Render("┃ Lifecycle") + "\n")
	b.WriteString(labelStyle.Render("  Progress: ") + m.bar.ViewAs(ratio) + " " +
		dimStyle.Render(FormatSteps(done, total)) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Features") + "\n")
	b.WriteString(m.renderFeatures())

	b.WriteString("\n" + sectionStyle.Render("┃ Open issues per cycle") + "\n")
	fmt.Fprintf(&b, "  %s %s\n", createSparkline(m.openIssues),
		valueStyle.Render(fmt.Sprintf("%d", m.snapshot.OpenIssues())))

	b.WriteString("\n" + labelStyle.Render("  Last: ") + m.lastEvent + "\n")

	b.WriteString(footerKeyStyle.Render("[q]") + footerStyle.Render(" quit"))

	return containerStyle.Render(b.String())
}

func (m Model) renderFeatures() string {
	var b strings.Builder
	header := []string{"design", "impl", "test", "review"}
	b.WriteString("  " + nameStyle.Render(dimStyle.Render("feature")))
	for _, h := range header {
		b.WriteString(cellStyle.Render(dimStyle.Render(h)))
	}
	b.WriteString("  " + dimStyle.Render("stage") + "\n")

	for _, f := range m.snapshot.Features {
		name := f.Name
		if len(name) > nameWidth-1 {
			name = name[:nameWidth-2] + "…"
		}
		b.WriteString("  " + nameStyle.Render(name))
		for _, set := range featureFlags(f) {
			mark := flagMark(set)
			if set {
				mark = healthyStyle.Render(mark)
			}
			b.WriteString(cellStyle.Render(mark))
		}
		stage := string(f.Stage())
		if len(f.Issues) > 0 {
			stage += errorStyle.Render(fmt.Sprintf(" (%d issues)", len(f.Issues)))
		}
		b.WriteString("  " + stage + "\n")
	}
	return b.String()
}
