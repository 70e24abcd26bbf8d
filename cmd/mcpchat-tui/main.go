// mcpchat-tui is the full-screen variant of the interactive MCP client:
// a transcript viewport over a single-line input, with arrow-key history
// navigation and cooperative cancellation on ctrl+c.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/finna-data/mcpchat/agent"
	"github.com/finna-data/mcpchat/observability"
	"github.com/finna-data/mcpchat/session"
	"github.com/finna-data/mcpchat/transcript"
)

type theme struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	toolCall  lipgloss.Style
	toolResp  lipgloss.Style
	errText   lipgloss.Style
	status    lipgloss.Style
	inputBox  lipgloss.Style
}

func newTheme() theme {
	return theme{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#01cdfe")),
		user:      lipgloss.NewStyle().Bold(true),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1")),
		system:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8")),
		toolCall:  lipgloss.NewStyle().Foreground(lipgloss.Color("#01cdfe")),
		toolResp:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c")),
		errText:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff71ce")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8")),
		inputBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a184a")).
			Padding(0, 1),
	}
}

type connectedMsg struct{ err error }

type submittedMsg struct {
	disp session.Disposition
	turn *session.Turn
}

type turnDoneMsg struct{ state agent.State }

type tickMsg time.Time

type model struct {
	session *session.Session
	input   textinput.Model
	view    viewport.Model
	spin    spinner.Model
	theme   theme

	width      int
	height     int
	ready      bool
	connected  bool
	running    bool
	cancelling bool
	status     string
	startupErr error
}

func newModel(s *session.Session, initial string) model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Placeholder = "Ask a question (/clear to reset, /exit to quit)"
	input.SetValue(initial)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return model{
		session: s,
		input:   input,
		view:    viewport.New(0, 0),
		spin:    sp,
		theme:   newTheme(),
		status:  "connecting...",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textinput.Blink, m.connectCmd())
}

func (m model) connectCmd() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return connectedMsg{err: s.Connect(context.Background())}
	}
}

func (m model) submitCmd(input string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		disp, turn := s.Submit(input)
		return submittedMsg{disp: disp, turn: turn}
	}
}

func waitTurn(turn *session.Turn) tea.Cmd {
	return func() tea.Msg {
		result := turn.Result()
		return turnDoneMsg{state: result.State}
	}
}

// tick re-renders while a turn is running so tool entries appear as the
// interceptor records them.
func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.view.Width = msg.Width
		m.view.Height = msg.Height - 5
		m.ready = true
		m.renderTranscript()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case connectedMsg:
		if msg.err != nil {
			m.startupErr = msg.err
			m.status = "startup failed"
			break
		}
		m.connected = true
		m.status = "ready · model " + m.session.Model()

	case submittedMsg:
		switch msg.disp {
		case session.DispositionExit:
			return m, tea.Quit
		case session.DispositionAsk:
			m.running = true
			m.status = "thinking..."
			cmds = append(cmds, waitTurn(msg.turn), tick())
		case session.DispositionBusy:
			m.status = "busy: a request is already in flight"
		default:
			m.status = "ready · model " + m.session.Model()
		}
		m.renderTranscript()

	case turnDoneMsg:
		m.running = false
		m.cancelling = false
		switch msg.state {
		case agent.StateCancelled:
			m.status = "cancelled · model " + m.session.Model()
		case agent.StateFailed:
			m.status = "failed · model " + m.session.Model()
		default:
			m.status = "ready · model " + m.session.Model()
		}
		m.renderTranscript()

	case tickMsg:
		if m.running {
			m.renderTranscript()
			cmds = append(cmds, tick())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.running && !m.cancelling {
				m.session.Cancel()
				m.cancelling = true
				m.status = "cancelling..."
				break
			}
			return m, tea.Quit
		case "esc":
			return m, tea.Quit
		case "up":
			m.input.SetValue(m.session.History().Navigate(-1))
			m.input.CursorEnd()
		case "down":
			m.input.SetValue(m.session.History().Navigate(+1))
			m.input.CursorEnd()
		case "enter":
			if m.startupErr != nil {
				return m, tea.Quit
			}
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				break
			}
			m.input.SetValue("")
			cmds = append(cmds, m.submitCmd(value))
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) renderTranscript() {
	var b strings.Builder
	for _, e := range m.session.Transcript().Entries() {
		switch e.Kind {
		case transcript.KindUser:
			b.WriteString(m.theme.user.Render("User: " + e.Text))
		case transcript.KindAssistant:
			b.WriteString(m.theme.assistant.Render("Assistant: " + e.Text))
		case transcript.KindSystem:
			b.WriteString(m.theme.system.Render(e.Text))
		case transcript.KindToolCall:
			b.WriteString(m.theme.toolCall.Render("MCP call: " + e.Text))
		case transcript.KindToolResponse:
			b.WriteString(m.theme.toolResp.Render("MCP response: " + e.Text))
		case transcript.KindError:
			b.WriteString(m.theme.errText.Render("Error: " + e.Text))
		}
		b.WriteString("\n")
	}
	m.view.SetContent(b.String())
	m.view.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}
	if m.startupErr != nil {
		return m.theme.errText.Render(fmt.Sprintf("startup failed: %v", m.startupErr)) +
			"\n\npress enter to quit"
	}

	status := m.status
	if m.running {
		status = m.spin.View() + " " + status
	}

	return m.theme.header.Render("mcpchat") + "\n" +
		m.view.View() + "\n" +
		m.theme.inputBox.Width(m.width-2).Render(m.input.View()) + "\n" +
		m.theme.status.Render(status)
}

func main() {
	var (
		configFile = flag.String("config", "", "Path to config JSON file (optional)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to a file")
	)
	flag.Parse()

	cfg := session.DefaultConfig()
	if *configFile != "" {
		loaded, err := session.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	env := session.FromEnv()
	cfg.Merge(&env)

	observer := observability.Observer(observability.NoOpObserver{})
	if *verbose {
		// Stderr is owned by the terminal UI; verbose logs go to a file.
		logFile, err := tea.LogToFile("mcpchat-tui.log", "debug")
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		observer = observability.NewSlogObserver(logger)
	}

	s, err := session.New(cfg, session.WithObserver(observer))
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer s.Close()

	initial := strings.TrimSpace(strings.Join(flag.Args(), " "))

	p := tea.NewProgram(newModel(s, initial), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
