package tui

import (
	"fmt"
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/conversation"
	"research-cli/internal/service"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

func renderWelcome(version, endpoint string, voice bool) string {
	titleLine := logoTitleStyle.Render("Research Assistant") + " " + versionStyle.Render("v"+version)

	voiceDisplay := "voice off"
	if voice {
		voiceDisplay = "voice on"
	}
	infoLine := welcomeInfoLabel.Render(fmt.Sprintf("%s · %s", service.Truncate(endpoint, 40), voiceDisplay))
	hint := welcomeHintStyle.Render("Name a company to research, or type /help")

	return fmt.Sprintf("\n%s\n\n%s\n%s\n%s\n", renderLogo(), titleLine, infoLine, hint)
}

const lensASCIIArt = `
      **********
    ***        ***
   **            **
  **              **
  **              **
   **            **
    ***        ***
      **********##
                ####
                  ####
                    ##
`

func renderLogo() string {
	lines := strings.Split(lensASCIIArt, "\n")
	lines = trimEmptyEdgeLines(lines)

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := countLeadingSpaces(line)
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}

	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		if minIndent > 0 && len(line) >= minIndent {
			line = line[minIndent:]
		}
		lines[i] = colorizeLogoLine(line)
	}

	return strings.Join(lines, "\n")
}

func trimEmptyEdgeLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func countLeadingSpaces(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

// colorizeLogoLine styles runs of lens ('*') and handle ('#') characters.
func colorizeLogoLine(line string) string {
	const (
		stylePlain = iota
		styleLens
		styleHandle
	)

	styleFor := func(r rune) int {
		switch r {
		case '*':
			return styleLens
		case '#':
			return styleHandle
		default:
			return stylePlain
		}
	}

	render := func(style int, s string) string {
		switch style {
		case styleLens:
			return logoLensStyle.Render(s)
		case styleHandle:
			return logoGlassStyle.Render(s)
		default:
			return s
		}
	}

	var out strings.Builder
	var run strings.Builder
	currentStyle := stylePlain

	for i, r := range line {
		next := styleFor(r)
		if i > 0 && next != currentStyle && run.Len() > 0 {
			out.WriteString(render(currentStyle, run.String()))
			run.Reset()
		}
		currentStyle = next
		run.WriteRune(r)
	}
	if run.Len() > 0 {
		out.WriteString(render(currentStyle, run.String()))
	}
	return out.String()
}

// ─── Conversation ───────────────────────────────────────────────────────────

// renderMessage formats one conversation entry for the scrollback.
// Assistant text is markdown; user text is echoed after the prompt symbol.
func (m model) renderMessage(msg conversation.Message) string {
	if msg.Role == api.RoleUser {
		return userPromptStyle.Render("  ❯ " + msg.Text)
	}
	if msg.Failed {
		return errorMsgStyle.Render("  " + msg.Text)
	}
	return m.md.Render(msg.Text, m.markdownWidth())
}

func (m model) renderMarkdown(md string) string {
	return m.md.Render(md, m.markdownWidth())
}

func (m model) markdownWidth() int {
	w := min(m.width, 100) - 4
	if w < 20 {
		w = 20
	}
	return w
}

func renderSources(sources []string) []string {
	lines := []string{sourceHeaderStyle.Render(fmt.Sprintf("  📎 Sources (%d):", len(sources)))}
	for i, src := range sources {
		label := service.SourceLabel(src, 50)
		line := fmt.Sprintf("    %2d. %s", i+1, label)
		if label != src {
			line += "  " + dimStyle.Render(src)
		}
		lines = append(lines, line)
	}
	return lines
}

func renderSectionList(plan *conversation.Plan) []string {
	lines := []string{planHeaderStyle.Render(fmt.Sprintf("  📋 Plan sections (%d):", plan.Len()))}
	for i, key := range plan.Keys() {
		lines = append(lines, fmt.Sprintf("    %2d. %-28s %s", i+1, key, dimStyle.Render(service.SectionHeading(key))))
	}
	return lines
}
