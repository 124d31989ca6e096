package event

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
)

var (
	colorCyan    = lipgloss.Color("#00FFFF")
	colorMagenta = lipgloss.Color("#FF00FF")
	colorGreen   = lipgloss.Color("#00FF00")
	colorRed     = lipgloss.Color("#FF0055")
	colorDimText = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(colorDimText)
	crashStyle = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	coverStyle = lipgloss.NewStyle().Foreground(colorGreen)
	solnStyle  = lipgloss.NewStyle().Foreground(colorMagenta)
)

// logLine is one entry in the scrolling event log the dashboard renders.
type logLine struct {
	at   time.Time
	text string
	kind string // "cover", "solution", "crash"
}

// SimpleEventManager is a terminal dashboard: a bubbletea Model tracking
// Stats and a scrolling log of fuzzer-loop events, grounded on the
// header/stats-panel/log-panel/footer layout and the TickMsg-driven refresh
// loop of a conventional terminal fuzzing dashboard.
type SimpleEventManager struct {
	stats   *Stats
	logs    []logLine
	maxLogs int

	width  int
	height int
}

// NewSimpleEventManager builds a SimpleEventManager ready to be run as a
// bubbletea program via Run.
func NewSimpleEventManager() *SimpleEventManager {
	return &SimpleEventManager{
		stats:   NewStats(),
		maxLogs: 50,
		width:   80,
		height:  24,
	}
}

// Stats returns a snapshot of this dashboard's counters, for a supervisor
// aggregating several clients' stats into one combined view.
func (m *SimpleEventManager) Stats() Stats {
	return m.stats.Snapshot()
}

func (m *SimpleEventManager) addLog(kind, text string) {
	m.logs = append(m.logs, logLine{at: time.Now(), kind: kind, text: text})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

func (m *SimpleEventManager) FireNewTestcase(idx int, tc *corpus.Testcase) {
	m.stats.RecordNewTestcase()
	m.addLog("cover", fmt.Sprintf("new coverage: corpus[%d] (%d bytes)", idx, len(tc.Input.Bytes())))
}

func (m *SimpleEventManager) FireSolution(idx int, tc *corpus.Testcase) {
	m.stats.RecordSolution()
	m.addLog("solution", fmt.Sprintf("solution found: solutions[%d] (%d bytes)", idx, len(tc.Input.Bytes())))
}

func (m *SimpleEventManager) FireCrash(tc *corpus.Testcase) {
	m.stats.RecordCrash()
	m.addLog("crash", fmt.Sprintf("crash: %d bytes, hash=%s", len(tc.Input.Bytes()), tc.Input.Hash()[:12]))
}

// ProcessEvents refreshes the execution counter from state; the dashboard
// itself is driven independently by bubbletea's tick loop once Run is
// called.
func (m *SimpleEventManager) ProcessEvents(state *fuzzstate.State, exec executor.Executor, sched corpus.Scheduler) error {
	m.stats.SetExecutions(state.Executions())
	return nil
}

// --- bubbletea Model ---

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *SimpleEventManager) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

func (m *SimpleEventManager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		return m, tickCmd()
	}
	return m, nil
}

func (m *SimpleEventManager) View() string {
	snap := m.stats.Snapshot()

	header := titleStyle.Render("emberfuzz") + "  " +
		labelStyle.Render(fmt.Sprintf("uptime %s", time.Since(snap.StartTime).Round(time.Second)))

	statsPanel := panelStyle.Render(strings.Join([]string{
		fmt.Sprintf("executions   %d", snap.Executions),
		fmt.Sprintf("execs/sec    %.1f", snap.ExecsPerSec()),
		coverStyle.Render(fmt.Sprintf("corpus size  %d", snap.CorpusSize)),
		solnStyle.Render(fmt.Sprintf("solutions    %d", snap.SolutionCount)),
		crashStyle.Render(fmt.Sprintf("crashes      %d", snap.CrashCount)),
	}, "\n"))

	var logLines []string
	for _, l := range m.logs {
		style := labelStyle
		switch l.kind {
		case "cover":
			style = coverStyle
		case "solution":
			style = solnStyle
		case "crash":
			style = crashStyle
		}
		logLines = append(logLines, style.Render(fmt.Sprintf("[%s] %s", l.at.Format("15:04:05"), l.text)))
	}
	logPanel := panelStyle.Render(strings.Join(logLines, "\n"))

	footer := labelStyle.Render("q: quit")

	return strings.Join([]string{header, statsPanel, logPanel, footer}, "\n")
}

// Run blocks running the dashboard as a bubbletea program until the user
// quits.
func Run(m *SimpleEventManager) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
