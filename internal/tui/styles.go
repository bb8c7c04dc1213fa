package tui

import "github.com/charmbracelet/lipgloss"

// ─── Colors ─────────────────────────────────────────────────────────────────

var (
	colorTeal    = lipgloss.Color("#2BB5A3") // primary accent
	colorGreen   = lipgloss.Color("78")
	colorYellow  = lipgloss.Color("220")
	colorRed     = lipgloss.Color("196")
	colorMagenta = lipgloss.Color("213")
	colorBlue    = lipgloss.Color("111")
	colorGray    = lipgloss.Color("242")
	colorDimGray = lipgloss.Color("238")
	colorWhite   = lipgloss.Color("255")
)

// ─── Welcome ────────────────────────────────────────────────────────────────

var logoLensStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var logoGlassStyle = lipgloss.NewStyle().
	Foreground(colorTeal)

var logoTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite)

var versionStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var welcomeHintStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Italic(true)

var welcomeInfoLabel = lipgloss.NewStyle().
	Foreground(colorGray)

// ─── Input / Prompt ─────────────────────────────────────────────────────────

var promptSymbol = lipgloss.NewStyle().
	Foreground(colorTeal).
	Bold(true)

// ─── Hint Bar ───────────────────────────────────────────────────────────────

var hintBarStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var hintKeyStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Bold(true)

// Command menu styles
var cmdNameStyle = lipgloss.NewStyle().
	Foreground(colorTeal)

var cmdDescStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var cmdSelectedNameStyle = lipgloss.NewStyle().
	Foreground(colorTeal).
	Bold(true).
	Reverse(true)

var cmdSelectedDescStyle = lipgloss.NewStyle().
	Foreground(colorWhite).
	Bold(true)

// ─── Editor ─────────────────────────────────────────────────────────────────

var editorTitleStyle = lipgloss.NewStyle().
	Foreground(colorMagenta).
	Bold(true)

var editorBorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorDimGray).
	Padding(0, 1)

// ─── Output Styles ──────────────────────────────────────────────────────────

var successMsgStyle = lipgloss.NewStyle().
	Foreground(colorGreen)

var errorMsgStyle = lipgloss.NewStyle().
	Foreground(colorRed)

var warnMsgStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var statusStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var userPromptStyle = lipgloss.NewStyle().
	Foreground(colorTeal).
	Bold(true)

var sourceHeaderStyle = lipgloss.NewStyle().
	Foreground(colorBlue).
	Bold(true)

var planHeaderStyle = lipgloss.NewStyle().
	Foreground(colorMagenta).
	Bold(true)

var dimStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var separatorStyle = lipgloss.NewStyle().
	Foreground(colorDimGray)
