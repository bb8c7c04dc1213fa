package tui

import (
	"fmt"

	"research-cli/internal/api"
	"research-cli/internal/config"
	"research-cli/internal/observability"
	"research-cli/internal/speech"

	tea "github.com/charmbracelet/bubbletea"
)

// Run launches the interactive TUI mode (inline, output scrolls above the prompt).
func Run(version, profile string) error {
	cfg, err := config.Load(profile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := observability.Setup(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("interactive session started",
		"version", version,
		"profile", config.ProfileName(profile),
		"endpoint", cfg.BaseURL(),
	)

	m := initialModel(version, profile, deps{
		cfg:        cfg,
		client:     api.NewClient(cfg, logger),
		speaker:    speech.NewSpeaker(cfg, logger),
		recognizer: speech.NewRecognizer(cfg, logger),
		logger:     logger,
	})

	p := tea.NewProgram(m)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
