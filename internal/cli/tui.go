package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/job"
	"github.com/matzehuels/penplot/pkg/preview"
)

// Progress bar styles
var (
	barFilledStyle = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// drawModel - Live plotting progress
// =============================================================================

// tickMsg drives the periodic progress refresh.
type tickMsg time.Time

// jobDoneMsg carries the job's single terminal event.
type jobDoneMsg job.Event

// drawModel is the bubbletea model that follows one job on the machine.
type drawModel struct {
	ctrl *job.Controller
	j    *job.Job
	cmds []device.Command

	progress job.Progress
	status   job.Status
	penX     float64
	penY     float64
	penDown  bool
	started  time.Time
	width    int

	final *job.Event
}

// newDrawModel creates a model following j.
func newDrawModel(ctrl *job.Controller, j *job.Job) drawModel {
	return drawModel{
		ctrl:     ctrl,
		j:        j,
		cmds:     j.Commands(),
		progress: j.Progress(),
		status:   j.Status(),
		started:  time.Now(),
		width:    72,
	}
}

func (m drawModel) Init() tea.Cmd {
	return tea.Batch(tick(), waitDone(m.j))
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitDone(j *job.Job) tea.Cmd {
	return func() tea.Msg {
		ev := <-j.Events()
		return jobDoneMsg(ev)
	}
}

func (m drawModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "p":
			if m.status == job.StatusStreaming {
				_ = m.ctrl.Pause(m.j.ID)
			}
		case "r":
			if m.status == job.StatusPaused {
				_ = m.ctrl.Resume(m.j.ID)
			}
		case "q", "ctrl+c", "esc":
			// Cancellation parks the pen; quit once the terminal event lands.
			_ = m.ctrl.Cancel(m.j.ID)
		}
		m.status = m.j.Status()

	case tickMsg:
		m.progress = m.j.Progress()
		m.status = m.j.Status()
		pen := m.j.Pen()
		m.penX, m.penY, m.penDown = pen.X, pen.Y, pen.PenDown
		return m, tick()

	case jobDoneMsg:
		ev := job.Event(msg)
		m.final = &ev
		m.progress = m.j.Progress()
		m.status = ev.Status
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width < 40 {
			m.width = 40
		}
	}
	return m, nil
}

func (m drawModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Plotting " + m.j.Method))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("p pause  r resume  q cancel"))
	b.WriteString("\n\n")

	b.WriteString(m.renderBar())
	b.WriteString("\n")

	pen := StyleDim.Render("pen up")
	if m.penDown {
		pen = stylePenDown.Render("pen down")
	}
	b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
		StyleValue.Render(fmt.Sprintf("%d/%d", m.progress.Acked, m.progress.Total)),
		StyleDim.Render(fmt.Sprintf("(%.1f, %.1f)", m.penX, m.penY)),
		pen))

	b.WriteString(fmt.Sprintf("  %s  %s\n",
		m.renderStatus(),
		StyleDim.Render(fmt.Sprintf("elapsed %s · remaining %s",
			time.Since(m.started).Round(time.Second), m.remaining().Round(time.Second)))))

	return b.String()
}

// renderBar draws the progress bar sized to the terminal width.
func (m drawModel) renderBar() string {
	width := m.width - 6
	if width > 60 {
		width = 60
	}
	filled := 0
	if m.progress.Total > 0 {
		filled = width * m.progress.Acked / m.progress.Total
	}
	return "  " +
		barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// renderStatus renders the job phase with a state-appropriate color.
func (m drawModel) renderStatus() string {
	switch m.status {
	case job.StatusPaused:
		return StyleWarning.Render("paused")
	case job.StatusCompleted:
		return StyleSuccess.Render("completed")
	case job.StatusCancelled:
		return StyleWarning.Render("cancelled")
	case job.StatusFailed:
		return styleIconError.Render("failed")
	default:
		return StyleHighlight.Render(string(m.status))
	}
}

// remaining re-estimates the unexecuted tail of the stream. Acked counts
// include the homing prefix, so the tail starts one before it in the
// compiled stream. The slice loses pen state at the cut, so the estimate
// leans pessimistic right after a pen drop.
func (m drawModel) remaining() time.Duration {
	tail := m.progress.Acked - 1
	if tail < 0 {
		tail = 0
	}
	if tail >= len(m.cmds) {
		return 0
	}
	return preview.EstimateDuration(m.cmds[tail:]).Total()
}
