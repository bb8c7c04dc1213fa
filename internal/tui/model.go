package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/config"
	"research-cli/internal/conversation"
	"research-cli/internal/display"
	"research-cli/internal/observability"
	"research-cli/internal/service"
	"research-cli/internal/speech"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
	modeEditing
	modeListening
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/clear", "Clear the screen"},
	{"/config", "Show current configuration"},
	{"/copy", "Copy the plan or a section to the clipboard"},
	{"/edit", "Edit a plan section"},
	{"/help", "Show all commands"},
	{"/listen", "Speak your next message"},
	{"/plan", "Show the account plan"},
	{"/quit", "Exit"},
	{"/sections", "List plan sections"},
	{"/sources", "List research sources"},
	{"/voice", "Turn spoken replies on or off"},
}

const inputPlaceholder = "Ask about a company or type /help..."

// ─── Model ──────────────────────────────────────────────────────────────────

// deps are the collaborators built by Run. Tests pass fakes.
type deps struct {
	cfg        *config.Config
	client     api.ResearchAPI
	speaker    speech.Speaker
	recognizer speech.Recognizer
	logger     *slog.Logger
}

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	editor  textarea.Model
	spinner spinner.Model

	// App state
	mode       appMode
	cfg        *config.Config
	client     api.ResearchAPI
	speaker    speech.Speaker
	recognizer speech.Recognizer
	logger     *slog.Logger
	version    string
	profile    string

	// Conversation, shared by every copy of the model
	state *conversation.State
	md    *display.MarkdownRenderer
	voice bool

	// Streaming state
	turn     int
	streamCh <-chan tea.Msg
	cancel   context.CancelFunc
	status   string

	// Speech input state
	listenSeq    int
	listenCancel context.CancelFunc

	// UI state
	ready        bool
	cmdMenuIdx   int
	cmdMenuOpen  bool
	lastInputVal string

	// Input history
	history      []string
	historyIdx   int // -1 when not browsing
	historySaved string
}

func initialModel(version, profile string, d deps) model {
	ti := textinput.New()
	ti.Placeholder = inputPlaceholder
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorTeal)

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(12)
	ta.Placeholder = "Section content..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorTeal)

	if d.cfg == nil {
		d.cfg = &config.Config{Profile: profile}
	}
	if d.logger == nil {
		d.logger = observability.Logger()
	}
	if d.speaker == nil {
		d.speaker = speech.Nop{}
	}
	if d.recognizer == nil {
		d.recognizer = speech.NewRecognizer(d.cfg, d.logger)
	}

	return model{
		input:      ti,
		editor:     ta,
		spinner:    sp,
		version:    version,
		profile:    profile,
		cfg:        d.cfg,
		client:     d.client,
		speaker:    d.speaker,
		recognizer: d.recognizer,
		logger:     d.logger,
		mode:       modeIdle,
		state:      conversation.NewState(),
		md:         display.NewMarkdownRenderer(),
		voice:      d.cfg.SpeechEnabled(),
		history:    make([]string, 0),
		historyIdx: -1,
	}
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6
		m.editor.SetWidth(max(min(m.width, 100)-6, 20))

		if !m.ready {
			m.ready = true
			// Print welcome header and the greeting on first render
			welcome := []tea.Cmd{tea.Println(renderWelcome(m.version, m.cfg.BaseURL(), m.voice))}
			for _, cm := range m.state.Messages() {
				welcome = append(welcome, tea.Println(m.renderMessage(cm)))
			}
			welcome = append(welcome, tea.Println(""))
			cmds = append(cmds, tea.Sequence(welcome...))
		}

	case tea.KeyMsg:
		if m.mode == modeEditing {
			return m.updateEditor(msg)
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			switch m.mode {
			case modeStreaming:
				return m.cancelTurn()
			case modeListening:
				return m.cancelListen()
			}
			m.speaker.Stop()
			return m, tea.Quit

		case tea.KeyEsc:
			switch m.mode {
			case modeStreaming:
				return m.cancelTurn()
			case modeListening:
				return m.cancelListen()
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					if m.historyIdx == -1 {
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else if m.historyIdx > 0 {
						m.historyIdx--
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}

		case tea.KeyEnter:
			// Input is disabled while a turn streams or speech is captured
			if m.mode != modeIdle {
				return m, nil
			}

			// Pick the highlighted command unless it is already typed out
			if m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				if m.cmdMenuIdx < len(matches) && matches[m.cmdMenuIdx].name != strings.TrimSpace(m.input.Value()) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}

			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}

			if len(m.history) == 0 || m.history[len(m.history)-1] != value {
				m.history = append(m.history, value)
				if len(m.history) > 1000 {
					m.history = m.history[len(m.history)-1000:]
				}
			}
			m.historyIdx = -1
			m.historySaved = ""

			m.input.SetValue("")
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0

			return m.dispatchInput(value)
		}

	// ── Stream messages ───────────────────────────────────────────────
	case streamEventMsg:
		if msg.turn != m.turn || m.mode != modeStreaming {
			return m, nil
		}
		printCmds := m.applyEvent(msg.ev)
		if m.streamCh != nil {
			printCmds = append(printCmds, waitForStream(m.streamCh))
		}
		return m, tea.Sequence(printCmds...)

	case streamDoneMsg:
		if msg.turn != m.turn || m.mode != modeStreaming {
			return m, nil
		}
		return m.finishTurn(msg.err)

	// ── Speech input ──────────────────────────────────────────────────
	case listenResultMsg:
		return m.handleListenResult(msg)
	}

	// Update sub-components
	var cmd tea.Cmd

	switch m.mode {
	case modeIdle:
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	case modeEditing:
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	// Track input changes to open/close command menu and reset selection
	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		if m.historyIdx != -1 && m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
			m.historyIdx = -1
			m.historySaved = ""
		}
		m.cmdMenuOpen = strings.HasPrefix(newVal, "/") && !strings.Contains(newVal, " ")
		m.cmdMenuIdx = 0
	}

	return m, tea.Batch(cmds...)
}

// applyEvent folds one stream event into the conversation and returns the
// print commands for whatever it appended.
func (m *model) applyEvent(ev api.Event) []tea.Cmd {
	tr := m.state.Apply(ev)

	if agent, ok := ev.(api.AgentEvent); ok && len(agent.Updates) > 0 {
		node := agent.Updates[len(agent.Updates)-1].Node
		m.status = fmt.Sprintf("Researching (%s)...", service.SectionName(node))
	}

	var cmds []tea.Cmd
	for _, am := range tr.Appended {
		cmds = append(cmds, tea.Println(m.renderMessage(am)))
	}
	if n := len(tr.NewSources); n > 0 {
		noun := "sources"
		if n == 1 {
			noun = "source"
		}
		cmds = append(cmds, tea.Println(dimStyle.Render(fmt.Sprintf("  📎 %d new %s · /sources to list", n, noun))))
	}
	if m.voice {
		for _, text := range tr.Speak {
			m.speaker.Speak(text)
		}
	}
	return cmds
}

// finishTurn returns to idle after the stream ends. A non-nil err is a
// transport failure and is recorded in the conversation.
func (m model) finishTurn(err error) (tea.Model, tea.Cmd) {
	m.endTurn()

	var cmds []tea.Cmd
	if err != nil {
		m.logger.Error("research turn failed", "turn", m.turn, "error", err)
		failed := m.state.FailTransport(err)
		cmds = append(cmds, tea.Println(m.renderMessage(failed)))
	}
	cmds = append(cmds, tea.Println(""))
	return m, tea.Sequence(cmds...)
}

func (m model) cancelTurn() (tea.Model, tea.Cmd) {
	m.endTurn()
	m.speaker.Stop()
	m.logger.Info("research turn cancelled", "turn", m.turn)
	return m, tea.Println(warnMsgStyle.Render("  ! Research cancelled."))
}

func (m *model) endTurn() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state.Finish()
	m.streamCh = nil
	m.status = ""
	m.mode = modeIdle
}

// ─── Editor ─────────────────────────────────────────────────────────────────

func (m model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlS:
		saved, err := m.state.SaveEdit(m.editor.Value())
		m.closeEditor()
		if err != nil {
			return m, tea.Println(errorMsgStyle.Render("  ✗ " + err.Error()))
		}
		return m, tea.Sequence(tea.Println(m.renderMessage(saved)), tea.Println(""))

	case tea.KeyEsc, tea.KeyCtrlC:
		m.state.CancelEdit()
		m.closeEditor()
		return m, tea.Println(warnMsgStyle.Render("  ! Edit discarded."))
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if err := m.state.UpdateDraft(m.editor.Value()); err != nil {
		m.logger.Debug("draft update without edit session", "error", err)
	}
	return m, cmd
}

func (m *model) closeEditor() {
	m.editor.Blur()
	m.editor.Reset()
	m.mode = modeIdle
	m.input.Focus()
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() only shows the prompt (or editor) + hints.
// All output is printed above via tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	switch m.mode {
	case modeStreaming:
		status := "Researching..."
		if m.status != "" {
			status = m.status
		}
		s.WriteString(m.spinner.View() + " " + statusStyle.Render(status))
	case modeListening:
		s.WriteString(m.spinner.View() + " " + statusStyle.Render("Listening..."))
	case modeEditing:
		key, _ := m.state.Editing()
		s.WriteString(editorTitleStyle.Render("  ✎ Editing: " + service.SectionHeading(key)))
		s.WriteString("\n")
		s.WriteString(editorBorderStyle.Render(m.editor.View()))
	default:
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	sepWidth := max(min(m.width, 80), 20)
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	s.WriteString(m.renderHints())

	return s.String()
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	switch m.mode {
	case modeStreaming, modeListening:
		return hintBarStyle.Render("  Esc cancel")
	case modeEditing:
		return hintBarStyle.Render("  Ctrl+S save   Esc cancel")
	}

	if m.cmdMenuOpen {
		if matches := matchCommands(m.input.Value()); len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	hint := "  ? for help"
	if m.state.Plan() != nil {
		hint += " · /plan to view the account plan"
	}
	return hintBarStyle.Render(hint)
}

// renderCommandMenu renders a vertical list of matching commands.
func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		maxLen = max(maxLen, len(c.name))
	}

	var lines []string
	for i, c := range matches {
		padded := c.name + strings.Repeat(" ", maxLen-len(c.name))
		if i == m.cmdMenuIdx {
			lines = append(lines, "  "+cmdSelectedNameStyle.Render(padded)+"  "+cmdSelectedDescStyle.Render(c.desc))
		} else {
			lines = append(lines, "  "+cmdNameStyle.Render(padded)+"  "+cmdDescStyle.Render(c.desc))
		}
	}
	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}
