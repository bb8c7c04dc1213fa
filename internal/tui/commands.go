package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"research-cli/internal/config"
	"research-cli/internal/conversation"
	"research-cli/internal/service"
	"research-cli/internal/speech"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	return m.cmdAsk(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/plan":
		return m.cmdPlan(args)
	case "/sections":
		return m.cmdSections()
	case "/sources":
		return m.cmdSources()
	case "/edit":
		return m.cmdEdit(args)
	case "/copy":
		return m.cmdCopy(args)
	case "/listen":
		return m.cmdListen()
	case "/voice":
		return m.cmdVoice(args)
	case "/config":
		return m.cmdConfig()
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		m.speaker.Stop()
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown command: %s. Type /help", cmd)))
	}
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	row := func(usage, desc string) tea.Cmd {
		return tea.Println("  " + hintKeyStyle.Render(pad(usage, 22)) + dimStyle.Render(desc))
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Commands:")),
		tea.Println(""),
		row("/plan [section]", "Show the account plan or one section"),
		row("/sections", "List plan sections"),
		row("/sources", "List research sources"),
		row("/edit <section>", "Edit a plan section (Ctrl+S save, Esc cancel)"),
		row("/copy [section]", "Copy the plan or a section to the clipboard"),
		row("/listen", "Speak your next message"),
		row("/voice on|off", "Turn spoken replies on or off"),
		row("/config", "Show current configuration"),
		row("/clear", "Clear the screen"),
		row("/quit", "Exit"),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Or name a company to start researching. Esc cancels a running request.")),
		tea.Println(""),
	)
}

// ─── Ask ────────────────────────────────────────────────────────────────────

func (m model) cmdAsk(text string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ No research service configured. Use: research set endpoint <url>"))
	}

	req, err := m.state.Submit(text)
	if err != nil {
		if errors.Is(err, conversation.ErrBusy) {
			return m, tea.Println(warnMsgStyle.Render("  ! Still researching. Wait for the reply or press Esc to cancel."))
		}
		return m, nil
	}

	m.speaker.Stop()
	m.turn++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.streamCh = beginStream(ctx, m.client, req, m.turn)
	m.mode = modeStreaming
	m.status = ""
	m.logger.Info("research turn started", "turn", m.turn, "chars", len(req.Message))

	msgs := m.state.Messages()
	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(m.renderMessage(msgs[len(msgs)-1])),
		tea.Println(""),
		waitForStream(m.streamCh),
	)
}

// ─── Plan ───────────────────────────────────────────────────────────────────

// resolveSection matches user input against the current plan. The returned
// cmd reports why nothing matched.
func (m model) resolveSection(args []string) (string, tea.Cmd) {
	plan := m.state.Plan()
	if plan == nil {
		return "", tea.Println(warnMsgStyle.Render("  ! No account plan yet. Name a company to research first."))
	}
	input := strings.Join(args, " ")
	key, ok := service.MatchSection(plan.Keys(), input)
	if !ok {
		return "", tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! No plan section matches %q. Type /sections to list them.", input)))
	}
	return key, nil
}

func (m model) cmdPlan(args []string) (tea.Model, tea.Cmd) {
	plan := m.state.Plan()
	if plan == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No account plan yet. Name a company to research first."))
	}

	md := plan.Markdown()
	if len(args) > 0 {
		key, errCmd := m.resolveSection(args)
		if errCmd != nil {
			return m, errCmd
		}
		content, _ := plan.Get(key)
		md = conversation.SectionMarkdown(key, content)
	} else if plan.Len() == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! The account plan has no sections yet."))
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(m.renderMarkdown(md)),
		tea.Println(""),
	)
}

func (m model) cmdSections() (tea.Model, tea.Cmd) {
	plan := m.state.Plan()
	if plan == nil || plan.Len() == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! No plan sections yet."))
	}

	cmds := []tea.Cmd{tea.Println("")}
	for _, line := range renderSectionList(plan) {
		cmds = append(cmds, tea.Println(line))
	}
	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tip: /plan <section> to view · /edit <section> to change")),
		tea.Println(""),
	)
	return m, tea.Sequence(cmds...)
}

func (m model) cmdSources() (tea.Model, tea.Cmd) {
	sources := m.state.Sources()
	if len(sources) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! No sources collected yet."))
	}

	cmds := []tea.Cmd{tea.Println("")}
	for _, line := range renderSources(sources) {
		cmds = append(cmds, tea.Println(line))
	}
	cmds = append(cmds, tea.Println(""))
	return m, tea.Sequence(cmds...)
}

// ─── /edit ──────────────────────────────────────────────────────────────────

func (m model) cmdEdit(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /edit <section>"))
	}
	key, errCmd := m.resolveSection(args)
	if errCmd != nil {
		return m, errCmd
	}

	draft, err := m.state.BeginEdit(key)
	if err != nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ " + err.Error()))
	}

	m.mode = modeEditing
	m.input.Blur()
	m.editor.SetValue(draft)
	return m, m.editor.Focus()
}

// ─── /copy ──────────────────────────────────────────────────────────────────

func (m model) cmdCopy(args []string) (tea.Model, tea.Cmd) {
	plan := m.state.Plan()
	if plan == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No account plan yet. Name a company to research first."))
	}

	text, what := plan.Markdown(), "account plan"
	if len(args) > 0 {
		key, errCmd := m.resolveSection(args)
		if errCmd != nil {
			return m, errCmd
		}
		content, _ := plan.Get(key)
		text, what = content, service.SectionHeading(key)
	}

	if err := writeClipboard(text); err != nil {
		m.logger.Warn("clipboard write failed", "error", err)
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Could not copy to clipboard: %v", err)))
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Copied %s to the clipboard", what)))
}

// ─── Speech ─────────────────────────────────────────────────────────────────

type listenResultMsg struct {
	seq  int
	text string
	err  error
}

func (m model) cmdListen() (tea.Model, tea.Cmd) {
	m.speaker.Stop()
	m.listenSeq++
	ctx, cancel := context.WithCancel(context.Background())
	m.listenCancel = cancel
	m.mode = modeListening

	rec := m.recognizer
	seq := m.listenSeq
	return m, func() tea.Msg {
		text, err := rec.Listen(ctx)
		return listenResultMsg{seq: seq, text: text, err: err}
	}
}

func (m model) handleListenResult(msg listenResultMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.listenSeq || m.mode != modeListening {
		return m, nil
	}
	m.endListen()

	switch {
	case errors.Is(msg.err, speech.ErrUnsupported):
		return m, tea.Println(warnMsgStyle.Render("  ! Speech input is not supported here. Set one with: research set listen-command <cmd>"))
	case errors.Is(msg.err, speech.ErrNoSpeech):
		return m, tea.Println(warnMsgStyle.Render("  ! Didn't catch that. Try /listen again."))
	case msg.err != nil:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Speech input failed: %v", msg.err)))
	}

	m.input.SetValue(msg.text)
	m.input.CursorEnd()
	return m, tea.Println(dimStyle.Render("  🎤 Heard: " + msg.text + "  (Enter to send)"))
}

func (m model) cancelListen() (tea.Model, tea.Cmd) {
	m.endListen()
	return m, tea.Println(warnMsgStyle.Render("  ! Listening cancelled."))
}

func (m *model) endListen() {
	if m.listenCancel != nil {
		m.listenCancel()
		m.listenCancel = nil
	}
	m.mode = modeIdle
}

func (m model) cmdVoice(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		state := "off"
		if m.voice {
			state = "on"
		}
		return m, tea.Println(dimStyle.Render(fmt.Sprintf("  Voice is %s. Usage: /voice on|off", state)))
	}

	switch strings.ToLower(args[0]) {
	case "on":
		if _, none := m.speaker.(speech.Nop); none {
			return m, tea.Println(warnMsgStyle.Render("  ! No speech engine found. Set one with: research set speak-command <cmd>"))
		}
		m.voice = true
		return m, tea.Println(successMsgStyle.Render("  ✓ Voice on"))
	case "off":
		m.voice = false
		m.speaker.Stop()
		return m, tea.Println(successMsgStyle.Render("  ✓ Voice off"))
	default:
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /voice on|off"))
	}
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	val := func(s string) string {
		if s == "" {
			return dimStyle.Render("(not set)")
		}
		return s
	}
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	engine := strings.Join(speech.DetectEngine(m.cfg), " ")
	if engine == "" {
		engine = dimStyle.Render("(none found)")
	}
	logPath, _ := m.cfg.LogPath()

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Configuration:")),
		tea.Println(fmt.Sprintf("    Profile:        %s", config.ProfileName(m.profile))),
		tea.Println(fmt.Sprintf("    Endpoint:       %s", m.cfg.BaseURL())),
		tea.Println(fmt.Sprintf("    Voice:          %s", onOff(m.voice))),
		tea.Println(fmt.Sprintf("    Speech engine:  %s", engine)),
		tea.Println(fmt.Sprintf("    Listen command: %s", val(m.cfg.ListenCommand))),
		tea.Println(fmt.Sprintf("    Log file:       %s", val(logPath))),
		tea.Println(fmt.Sprintf("    Log level:      %s", m.cfg.Level())),
		tea.Println(""),
	)
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	return m, tea.ClearScreen
}
