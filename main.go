package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/batch"
	"research-cli/internal/config"
	"research-cli/internal/conversation"
	"research-cli/internal/display"
	"research-cli/internal/observability"
	"research-cli/internal/service"
	"research-cli/internal/speech"
	"research-cli/internal/tui"

	"golang.org/x/term"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	activeProfile string
	jsonOutput    bool
)

// errTurnFailed means the failure was already printed as part of the transcript.
var errTurnFailed = errors.New("research turn failed")

func main() {
	args := os.Args[1:]

	// Parse global flags first (--profile, --json)
	args = parseGlobalFlags(args)

	// No args → launch interactive mode (default)
	if len(args) == 0 || args[0] == "-i" || args[0] == "--interactive" || args[0] == "interactive" {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	var err error

	switch args[0] {
	case "ask", "research":
		err = cmdAsk(args[1:])
	case "batch":
		err = cmdBatch(args[1:])
	case "set":
		err = cmdSet(args[1:])
	case "config":
		err = cmdConfig()
	case "profiles":
		err = cmdProfiles()
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Println(versionString())
	default:
		display.Error(fmt.Sprintf("Unknown command: %s", args[0]))
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, errTurnFailed) {
		os.Exit(1)
	}
	if err != nil {
		display.Error(err.Error())
		os.Exit(1)
	}
}

// ─── ask ────────────────────────────────────────────────────────────────────

func cmdAsk(args []string) error {
	var quiet bool
	var positional []string

	for _, a := range args {
		switch a {
		case "-q", "--quiet":
			quiet = true
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) == 0 {
		fmt.Println(`Usage: research ask "<question>" [--quiet]`)
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println(`  research ask "Research Acme Corp"`)
		fmt.Println(`  research --json ask "Build an account plan for Globex" > plan.json`)
		return nil
	}
	question := strings.Join(positional, " ")

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	_, closeLog, err := observability.Setup(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := observability.WithFields("command", "ask", "profile", config.ProfileName(activeProfile))

	var speaker speech.Speaker = speech.Nop{}
	if cfg.SpeechEnabled() && !quiet && !jsonOutput {
		speaker = speech.NewSpeaker(cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &asker{
		client:   api.NewClient(cfg, logger),
		state:    conversation.NewState(),
		speaker:  speaker,
		md:       display.NewMarkdownRenderer(),
		out:      os.Stdout,
		width:    terminalWidth(),
		json:     jsonOutput,
		progress: !jsonOutput && term.IsTerminal(int(os.Stdout.Fd())),
	}
	return a.run(ctx, question)
}

// asker runs a single research turn outside the TUI.
type asker struct {
	client  api.ResearchAPI
	state   *conversation.State
	speaker speech.Speaker
	md      *display.MarkdownRenderer
	out     io.Writer
	width   int
	json    bool

	// progress shows a thinking indicator until the first event arrives.
	progress bool
	spinning bool
}

func (a *asker) run(ctx context.Context, question string) error {
	req, err := a.state.Submit(question)
	if err != nil {
		return err
	}

	if !a.json {
		fmt.Fprintf(a.out, "\n%s  %s\n\n", display.RoleLabel(string(api.RoleUser)), question)
	}

	turnErr := a.stream(ctx, req)
	a.clearSpinner()
	a.state.Finish()

	cancelled := ctx.Err() != nil
	var failed *conversation.Message
	if turnErr != nil && !cancelled {
		m := a.state.FailTransport(turnErr)
		failed = &m
	}

	if a.json {
		if err := printJSON(a.out, newTranscript(question, a.state)); err != nil {
			return err
		}
	} else {
		switch {
		case cancelled:
			fmt.Fprintf(a.out, "\n%s!%s Research cancelled.\n", display.Yellow, display.Reset)
		case failed != nil:
			fmt.Fprintf(a.out, "\n%s%s%s\n", display.Red, failed.Text, display.Reset)
		}
		a.printSummary()
	}

	if failed != nil {
		return errTurnFailed
	}
	return nil
}

func (a *asker) stream(ctx context.Context, req *api.ChatRequest) error {
	if a.progress {
		display.Spinner(a.out, "Researching...")
		a.spinning = true
	}

	stream, err := a.client.Chat(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for ev := range stream.All() {
		a.clearSpinner()
		tr := a.state.Apply(ev)
		for _, text := range tr.Speak {
			a.speaker.Speak(text)
		}
		if !a.json {
			a.printEvent(ev, tr)
		}
	}
	return stream.Err()
}

func (a *asker) clearSpinner() {
	if a.spinning {
		display.ClearLine(a.out)
		a.spinning = false
	}
}

func (a *asker) printEvent(ev api.Event, tr conversation.Transition) {
	if agent, ok := ev.(api.AgentEvent); ok {
		for _, u := range agent.Updates {
			fmt.Fprintf(a.out, "  %s\n", display.NodeLabel(u.Node))
		}
	}
	for _, m := range tr.Appended {
		if m.Failed {
			fmt.Fprintf(a.out, "%s%s%s\n", display.Red, m.Text, display.Reset)
			continue
		}
		fmt.Fprintln(a.out, a.md.Render(m.Text, a.width))
		fmt.Fprintln(a.out)
	}
}

func (a *asker) printSummary() {
	if plan := a.state.Plan(); plan != nil && plan.Len() > 0 {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, a.md.Render(plan.Markdown(), a.width))
	}

	if sources := a.state.Sources(); len(sources) > 0 {
		fmt.Fprintf(a.out, "\n%sSources (%d)%s\n", display.Bold+display.White, len(sources), display.Reset)
		for i, src := range sources {
			fmt.Fprintln(a.out, display.SourceLine(i+1, service.SourceLabel(src, 60), src))
		}
	}
	fmt.Fprintln(a.out)
}

// ─── batch ──────────────────────────────────────────────────────────────────

func cmdBatch(args []string) error {
	var file string
	count := 0

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--count", "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a number", args[i])
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid count %q", args[i])
			}
			count = n
		default:
			file = args[i]
		}
	}

	companies, err := batch.Load(file)
	if err != nil {
		return err
	}
	companies = batch.Pick(companies, count)
	if len(companies) == 0 {
		display.Warn("Script has no companies.")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	_, closeLog, err := observability.Setup(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := observability.WithFields("command", "batch", "profile", config.ProfileName(activeProfile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &batch.Runner{Client: api.NewClient(cfg, logger), Logger: logger}
	if !jsonOutput {
		display.Header(fmt.Sprintf("Batch research (%d companies)", len(companies)))
		r.OnStart = func(c batch.Company) {
			fmt.Println()
			display.SubHeader(fmt.Sprintf("%s · %s", c.ID, c.Name))
		}
		r.OnEvent = func(c batch.Company, ev api.Event, _ conversation.Transition) {
			if agent, ok := ev.(api.AgentEvent); ok {
				for _, u := range agent.Updates {
					fmt.Printf("  %s\n", display.NodeLabel(u.Node))
				}
			}
		}
	}

	results, runErr := r.Run(ctx, companies)
	cancelled := runErr != nil && ctx.Err() != nil
	if cancelled {
		runErr = nil
	}

	if jsonOutput {
		if err := printJSON(os.Stdout, results); err != nil {
			return err
		}
		return runErr
	}

	if cancelled {
		fmt.Println()
		display.Warn("Batch cancelled.")
	}

	fmt.Println()
	for _, res := range results {
		mark := display.Green + "✓" + display.Reset
		if len(res.Errors) > 0 {
			mark = display.Yellow + "!" + display.Reset
		}
		fmt.Printf("  %s %-8s %-24s %d turn(s) · %d section(s) · %d source(s)\n",
			mark, res.ID, service.Truncate(res.Name, 24), res.Turns, len(res.Sections), len(res.Sources))
		for _, e := range res.Errors {
			fmt.Printf("      %s%s%s\n", display.Dim, e, display.Reset)
		}
	}
	fmt.Println()

	return runErr
}

// ─── JSON output ────────────────────────────────────────────────────────────

type transcript struct {
	Question string              `json:"question"`
	Messages []transcriptMessage `json:"messages"`
	Plan     []transcriptSection `json:"plan,omitempty"`
	Sources  []string            `json:"sources"`
}

type transcriptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Failed  bool   `json:"failed,omitempty"`
}

type transcriptSection struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func newTranscript(question string, state *conversation.State) transcript {
	t := transcript{Question: question, Sources: state.Sources()}
	if t.Sources == nil {
		t.Sources = []string{}
	}
	for _, m := range state.Messages() {
		t.Messages = append(t.Messages, transcriptMessage{Role: string(m.Role), Content: m.Text, Failed: m.Failed})
	}
	for _, s := range state.Plan().Sections() {
		t.Plan = append(t.Plan, transcriptSection{Key: s.Key, Title: service.SectionHeading(s.Key), Content: s.Content})
	}
	return t
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// ─── set / config / profiles ────────────────────────────────────────────────

func cmdSet(args []string) error {
	if len(args) < 2 {
		fmt.Println("Usage: research set <key> <value>")
		fmt.Println()
		fmt.Println("Keys:")
		fmt.Println("  endpoint        Research service URL  (e.g. http://localhost:8000)")
		fmt.Println("  speech          Read replies aloud    (on|off)")
		fmt.Println("  speak-command   Text-to-speech command (default: auto-detect)")
		fmt.Println("  listen-command  Speech-to-text command that prints a transcript")
		fmt.Println("  log-file        Log file path")
		fmt.Println("  log-level       debug, info, warn or error")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	key, value := args[0], strings.Join(args[1:], " ")
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	display.Success(fmt.Sprintf("%s set to %s", key, value))
	return nil
}

func cmdConfig() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	notSet := display.Dim + "(not set)" + display.Reset
	val := func(s string) string {
		if s == "" {
			return notSet
		}
		return s
	}

	engine := strings.Join(speech.DetectEngine(cfg), " ")
	if engine == "" {
		engine = display.Dim + "(none found)" + display.Reset
	}
	speechState := "off"
	if cfg.SpeechEnabled() {
		speechState = "on"
	}
	logPath, _ := cfg.LogPath()

	if jsonOutput {
		return printJSON(os.Stdout, map[string]any{
			"profile":        config.ProfileName(activeProfile),
			"endpoint":       cfg.BaseURL(),
			"speech":         cfg.SpeechEnabled(),
			"speak_command":  cfg.SpeakCommand,
			"listen_command": cfg.ListenCommand,
			"log_file":       logPath,
			"log_level":      cfg.Level(),
		})
	}

	display.Header("Research CLI Configuration")
	display.Info("Profile:", config.ProfileName(activeProfile))
	display.Info("Endpoint:", cfg.BaseURL())
	display.Info("Speech:", speechState)
	display.Info("Speech engine:", engine)
	display.Info("Listen command:", val(cfg.ListenCommand))
	display.Info("Log file:", val(logPath))
	display.Info("Log level:", cfg.Level())
	fmt.Println()

	return nil
}

func cmdProfiles() error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(os.Stdout, profiles)
	}

	display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))

	if len(profiles) == 0 {
		display.Warn("No profiles found.")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p == config.ProfileName(activeProfile) {
			marker = display.Green + "●" + display.Reset
		}
		fmt.Printf("  %s %s\n", marker, p)
	}
	fmt.Println()

	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func parseGlobalFlags(args []string) []string {
	var remaining []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--profile":
			if i+1 < len(args) {
				i++
				activeProfile = args[i]
			}
			continue
		case "-j", "--json":
			jsonOutput = true
			continue
		}
		remaining = append(remaining, args[i])
	}
	return remaining
}

func versionString() string {
	s := "research " + version
	if commit != "none" {
		s += fmt.Sprintf("\n  commit: %s\n  built:  %s", commit, date)
	}
	return s
}

// terminalWidth returns the markdown wrap width for stdout.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return min(w, 100) - 4
}

// ─── usage ──────────────────────────────────────────────────────────────────

func printUsage() {
	fmt.Printf(`%sResearch CLI%s · company research and strategic account plans (%s)

%sUsage:%s
  research                                            Launch interactive mode (default)
  research [--profile <name>] [--json] <command> ...  Run a specific command

%sResearch:%s
  ask "<question>"          Research a company and stream the answer
    -q, --quiet             Don't read replies aloud
  batch [file.yaml]         Replay a YAML research script (default: built-in demo)
    -n, --count <n>         Only run the first n companies

%sSettings:%s
  set endpoint <url>        Research service URL
  set speech on|off         Read replies aloud
  set speak-command <cmd>   Text-to-speech command (default: auto-detect)
  set listen-command <cmd>  Speech-to-text command for /listen
  set log-file <path>       Log file (default: ~/.research/research.log)
  set log-level <level>     debug, info, warn or error
  config                    Show current configuration

%sProfiles:%s
  profiles                  List all config profiles
  --profile <name>          Use a named config profile (default: unnamed)

%sEnvironment:%s
  RESEARCH_ENDPOINT, RESEARCH_SPEECH, RESEARCH_LOG_LEVEL override the config file

%sExamples:%s
  research                                      # Start interactive mode
  research set endpoint http://localhost:8000
  research ask "Research Acme Corp"
  research --json ask "Account plan for Globex" > globex.json
  research batch accounts.yaml --count 5
  research --profile staging config

`, display.Bold, display.Reset, version,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset)
}
