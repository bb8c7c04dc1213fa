package tui

import (
	"strings"
	"testing"

	"research-cli/internal/api"
	"research-cli/internal/conversation"
)

func TestRenderWelcome(t *testing.T) {
	out := renderWelcome("1.2.3", "http://localhost:8000", true)
	for _, want := range []string{"Research Assistant", "v1.2.3", "http://localhost:8000", "voice on", "/help"} {
		if !strings.Contains(out, want) {
			t.Errorf("welcome missing %q:\n%s", want, out)
		}
	}
	if out := renderWelcome("dev", "http://x", false); !strings.Contains(out, "voice off") {
		t.Errorf("welcome should report voice off:\n%s", out)
	}
}

func TestRenderLogoTrimsIndent(t *testing.T) {
	lines := strings.Split(renderLogo(), "\n")
	if len(lines) == 0 {
		t.Fatal("empty logo")
	}
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if n := countLeadingSpaces(l); minIndent == -1 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent != 0 {
		t.Errorf("logo keeps %d columns of common indent", minIndent)
	}
}

func TestColorizeLogoLineKeepsText(t *testing.T) {
	line := "  ****  ##"
	out := colorizeLogoLine(line)
	for _, want := range []string{"****", "##"} {
		if !strings.Contains(out, want) {
			t.Errorf("colorizeLogoLine(%q) = %q, missing %q", line, out, want)
		}
	}
	if colorizeLogoLine("") != "" {
		t.Error("empty line should stay empty")
	}
}

func TestTrimEmptyEdgeLines(t *testing.T) {
	got := trimEmptyEdgeLines([]string{"", "  ", "a", "", "b", " ", ""})
	if strings.Join(got, "|") != "a||b" {
		t.Errorf("trimEmptyEdgeLines() = %q", got)
	}
	if got := trimEmptyEdgeLines([]string{"", " "}); len(got) != 0 {
		t.Errorf("all-blank input = %q, want empty", got)
	}
}

func TestRenderMessage(t *testing.T) {
	m := newTestModel(&mockAPI{})

	user := m.renderMessage(conversation.Message{Role: api.RoleUser, Text: "Research Acme"})
	if !strings.Contains(user, "❯ Research Acme") {
		t.Errorf("user message = %q", user)
	}

	failed := m.renderMessage(conversation.Message{Role: api.RoleAssistant, Text: "❌ Error: quota exceeded", Failed: true})
	if !strings.Contains(failed, "❌ Error: quota exceeded") {
		t.Errorf("error message = %q", failed)
	}

	reply := m.renderMessage(conversation.Message{Role: api.RoleAssistant, Text: "Acme makes **anvils**."})
	if !strings.Contains(reply, "Acme makes") || !strings.Contains(reply, "anvils") {
		t.Errorf("assistant message = %q", reply)
	}
}

func TestMarkdownWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{80, 76},
		{200, 96},
		{10, 20},
	}

	for _, tt := range tests {
		m := newTestModel(&mockAPI{})
		m.width = tt.width
		if got := m.markdownWidth(); got != tt.want {
			t.Errorf("markdownWidth() at %d = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestRenderSources(t *testing.T) {
	lines := renderSources([]string{"https://www.acme.example/about/", "annual report"})
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2", len(lines))
	}
	if !strings.Contains(lines[0], "Sources (2)") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], " 1. acme.example/about") || !strings.Contains(lines[1], "https://www.acme.example/about/") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if strings.Count(lines[2], "annual report") != 1 {
		t.Errorf("line 2 = %q, non-URLs are shown once", lines[2])
	}
}

func TestRenderSectionList(t *testing.T) {
	plan := conversation.NewPlan([]api.Section{{Key: "summary"}, {Key: "next_steps"}})
	lines := renderSectionList(plan)
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.Contains(lines[2], "next_steps") || !strings.Contains(lines[2], "Next Steps") {
		t.Errorf("line = %q", lines[2])
	}
}

func TestPreview(t *testing.T) {
	var b strings.Builder
	if err := Preview(&b, "1.2.3", 80); err != nil {
		t.Fatalf("Preview() error: %v", err)
	}
	got := b.String()
	for _, want := range []string{
		"Research Assistant",
		"Research Acme Corp",
		"annual report",
		"❌ Error: rate limited",
		"Sources (2)",
		"acme.example/investors/2025-annual-report",
		"company_overview",
		"Key Stakeholders",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("preview missing %q", want)
		}
	}
}

func TestPreviewState(t *testing.T) {
	s := previewState()
	if s.InFlight() {
		t.Error("preview turn left in flight")
	}
	if got := s.Plan().Keys(); len(got) != 3 || got[2] != "next_steps" {
		t.Errorf("plan keys = %v", got)
	}
}
