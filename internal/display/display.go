package display

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

func Header(text string) {
	fmt.Printf("\n%s%s%s\n", Bold+Cyan, text, Reset)
	fmt.Println(strings.Repeat("─", min(len(text)+4, 80)))
}

func SubHeader(text string) {
	fmt.Printf("%s%s%s\n", Bold+White, text, Reset)
}

func Success(text string) {
	fmt.Printf("%s✓%s %s\n", Green, Reset, text)
}

func Error(text string) {
	fmt.Fprintf(os.Stderr, "%s✗%s %s\n", Red, Reset, text)
}

func Warn(text string) {
	fmt.Printf("%s!%s %s\n", Yellow, Reset, text)
}

func Info(label, value string) {
	fmt.Printf("  %s%-20s%s %s\n", Dim, label, Reset, value)
}

// Spinner writes a thinking indicator without a newline. ClearLine erases it.
func Spinner(w io.Writer, text string) {
	fmt.Fprintf(w, "\r%s⟳%s %s", Yellow, Reset, text)
}

func ClearLine(w io.Writer) {
	fmt.Fprint(w, "\r\033[K")
}

// RoleLabel renders the speaker tag printed before a message in plain output.
func RoleLabel(role string) string {
	switch role {
	case "user":
		return Bold + Yellow + "❯ You" + Reset
	case "assistant":
		return Bold + Green + "● Assistant" + Reset
	default:
		return Gray + role + Reset
	}
}

// NodeLabel renders the name of a workflow node reporting progress,
// e.g. "company_research" -> "⟳ company research".
func NodeLabel(node string) string {
	if node == "" {
		return Yellow + "⟳ working" + Reset
	}
	return Yellow + "⟳ " + strings.ReplaceAll(node, "_", " ") + Reset
}

// SourceLine renders one numbered source reference.
func SourceLine(n int, label, url string) string {
	if label == url || label == "" {
		return fmt.Sprintf("  %s%2d.%s %s", Blue, n, Reset, url)
	}
	return fmt.Sprintf("  %s%2d.%s %s %s%s%s", Blue, n, Reset, label, Gray, url, Reset)
}
