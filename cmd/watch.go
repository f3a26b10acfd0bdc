package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeeftor/deskpilot/internal/engine"
	"github.com/jeeftor/deskpilot/internal/styles"
)

// WatchTUIModel is the Bubble Tea model for the run dashboard
type WatchTUIModel struct {
	engine    *engine.Engine
	scriptIDs []string
	selected  int

	logMu   *sync.Mutex
	logTail *[]engine.ExecutionLog

	// TUI state
	width    int
	height   int
	quitting bool

	refreshInterval time.Duration
	lastRefresh     time.Time
	states          []engine.ExecutionState
	spinner         spinner.Model
}

const watchLogTail = 12

type watchTickMsg time.Time

// NewWatchTUIModel creates a dashboard over the given engine. Logs are
// collected from the engine's log stream into a shared tail buffer.
func NewWatchTUIModel(eng *engine.Engine, scriptIDs []string) WatchTUIModel {
	var mu sync.Mutex
	tail := make([]engine.ExecutionLog, 0, watchLogTail)

	eng.OnLog(func(entry engine.ExecutionLog) {
		mu.Lock()
		tail = append(tail, entry)
		if len(tail) > watchLogTail {
			tail = tail[len(tail)-watchLogTail:]
		}
		mu.Unlock()
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Primary))

	return WatchTUIModel{
		engine:          eng,
		scriptIDs:       scriptIDs,
		logMu:           &mu,
		logTail:         &tail,
		refreshInterval: 250 * time.Millisecond,
		spinner:         sp,
	}
}

// Watch TUI styles
var (
	watchTitleStyle  = styles.TitleStyle
	watchStatusStyle = styles.SuccessStyle
	watchBoxStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(styles.Primary)).
				Padding(0, 1)
	watchSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(styles.Highlight)).
				Bold(true)
	watchControlsStyle = styles.MutedStyle
)

// Init initializes the watch TUI model
func (m WatchTUIModel) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.tickCmd(),
		m.spinner.Tick,
	)
}

// tickCmd returns a command that sends tick messages
func (m WatchTUIModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m WatchTUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			for _, id := range m.scriptIDs {
				m.engine.Stop(id)
			}
			return m, tea.Quit
		case "tab", "down", "j":
			if len(m.scriptIDs) > 0 {
				m.selected = (m.selected + 1) % len(m.scriptIDs)
			}
			return m, nil
		case "up", "k":
			if len(m.scriptIDs) > 0 {
				m.selected = (m.selected + len(m.scriptIDs) - 1) % len(m.scriptIDs)
			}
			return m, nil
		case "p":
			m.engine.Pause(m.selectedID())
			return m, nil
		case "r":
			m.engine.Resume(m.selectedID())
			return m, nil
		case "s":
			m.engine.Stop(m.selectedID())
			return m, nil
		default:
			return m, nil
		}

	case watchTickMsg:
		m.states = m.engine.AllExecutionStates()
		m.lastRefresh = time.Now()
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m WatchTUIModel) selectedID() string {
	if len(m.scriptIDs) == 0 {
		return ""
	}
	return m.scriptIDs[m.selected]
}

// View renders the watch TUI
func (m WatchTUIModel) View() string {
	if m.quitting {
		return "Watch mode ended.\n"
	}

	var sections []string

	title := watchTitleStyle.Render(fmt.Sprintf(" DeskPilot - %d script(s) ", len(m.scriptIDs)))
	sections = append(sections, m.spinner.View()+" "+title)

	status := fmt.Sprintf("Refreshed: %s | Interval: %v",
		m.lastRefresh.Format("15:04:05"), m.refreshInterval)
	sections = append(sections, watchStatusStyle.Render(status))
	sections = append(sections, "")

	sections = append(sections, m.renderStates())
	sections = append(sections, "")
	sections = append(sections, m.renderLogTail())
	sections = append(sections, "")

	controls := watchControlsStyle.Render(
		"Controls: tab/j/k (select) | p (pause) | r (resume) | s (stop) | q (stop all and quit)")
	sections = append(sections, controls)

	return strings.Join(sections, "\n")
}

// renderStates renders one line per tracked script
func (m WatchTUIModel) renderStates() string {
	byID := make(map[string]engine.ExecutionState, len(m.states))
	for _, s := range m.states {
		byID[s.ScriptID] = s
	}

	var lines []string
	for i, id := range m.scriptIDs {
		state, ok := byID[id]
		if !ok {
			lines = append(lines, fmt.Sprintf("%s  (not started)", id))
			continue
		}

		repeat := fmt.Sprintf("%d/%d", state.CurrentRepeat, state.TotalRepeats)
		if state.IsInfiniteRepeat {
			repeat = fmt.Sprintf("%d/∞", state.CurrentRepeat)
		}

		line := fmt.Sprintf("%-20s %s  step %s  repeat %s  %d log(s)",
			state.ScriptName,
			statusStyleFor(state.Status).Render(string(state.Status)),
			state.CurrentStepID,
			repeat,
			len(state.Logs),
		)
		if i == m.selected {
			line = watchSelectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return watchBoxStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderLogTail renders the newest execution log entries
func (m WatchTUIModel) renderLogTail() string {
	m.logMu.Lock()
	tail := make([]engine.ExecutionLog, len(*m.logTail))
	copy(tail, *m.logTail)
	m.logMu.Unlock()

	if len(tail) == 0 {
		return watchBoxStyle.Render("Waiting for log output...")
	}

	var lines []string
	for _, entry := range tail {
		style := styles.LogInfoStyle
		switch entry.Level {
		case engine.LogWarning:
			style = styles.LogWarnStyle
		case engine.LogError:
			style = styles.LogErrorStyle
		case engine.LogDebug:
			style = styles.LogDebugStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			entry.Timestamp.Format("15:04:05"),
			style.Render(entry.Message)))
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return watchBoxStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func statusStyleFor(status engine.Status) lipgloss.Style {
	switch status {
	case engine.StatusRunning:
		return styles.SuccessStyle
	case engine.StatusPaused:
		return styles.WarningStyle
	case engine.StatusError:
		return styles.ErrorStyle
	default:
		return styles.MutedStyle
	}
}

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [script-id...]",
	Short: "Run scripts with a live dashboard",
	Long: `Run one or more scripts concurrently and watch their state, current
step, repeat progress and log output in a live dashboard.

Examples:
  deskpilot watch login-flow
  deskpilot watch login-flow keep-alive`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := BuildEngine()
		if err != nil {
			return err
		}

		model := NewWatchTUIModel(eng, args)

		for _, id := range args {
			if err := eng.Start(id); err != nil {
				return fmt.Errorf("starting script %s: %w", id, err)
			}
		}

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Printf("Error running watch TUI: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
