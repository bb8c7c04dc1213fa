package tui

import (
	"fmt"
	"io"
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/conversation"
)

// previewEvents is a canned research turn used to exercise every renderer
// without a service.
var previewEvents = []api.Event{
	api.MessageEvent{Role: api.RoleAssistant, Content: "Let me look into **Acme Corp** for you."},
	api.AgentEvent{Updates: []api.NodeUpdate{
		{
			Node:     "company_research",
			Messages: []string{"Found the 2025 annual report and two recent press releases."},
			Sources:  []string{"https://www.acme.example/investors/2025-annual-report", "https://news.example.com/acme-cloud-deal"},
		},
		{
			Node:    "synthesize",
			HasPlan: true,
			Plan: []api.Section{
				{Key: "company_overview", Content: "Acme Corp makes anvils, rockets and *portable holes*."},
				{Key: "key_stakeholders", Content: "- W. E. Coyote, Head of Procurement\n- R. Runner, Board advisor"},
				{Key: "next_steps", Content: "1. Book a discovery call\n2. Send the cloud cost benchmark"},
			},
		},
	}},
	api.ErrorEvent{Message: "rate limited, showing partial results"},
}

// Preview writes the welcome banner and a sample conversation, rendered the
// way the interactive session prints them, at the given terminal width.
func Preview(w io.Writer, version string, width int) error {
	m := initialModel(version, "", deps{})
	m.width = width

	var b strings.Builder
	b.WriteString(renderWelcome(version, "http://localhost:8000", true))
	b.WriteString("\n")

	m.state = previewState()
	for _, msg := range m.state.Messages() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n\n")
	}
	for _, line := range renderSources(m.state.Sources()) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	for _, line := range renderSectionList(m.state.Plan()) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderMarkdown(m.state.Plan().Markdown()))
	b.WriteString("\n")

	_, err := fmt.Fprint(w, b.String())
	return err
}

func previewState() *conversation.State {
	s := conversation.NewState()
	s.Submit("Research Acme Corp")
	for _, ev := range previewEvents {
		s.Apply(ev)
	}
	s.Finish()
	return s
}
