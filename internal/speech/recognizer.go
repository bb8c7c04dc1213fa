package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"research-cli/internal/config"
	"research-cli/internal/observability"
)

var (
	ErrUnsupported = errors.New("speech input is not supported: set listen-command first")
	ErrNoSpeech    = errors.New("no speech recognized")
)

// Recognizer captures one spoken utterance and returns its transcript.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

type unsupported struct{}

func (unsupported) Listen(context.Context) (string, error) {
	return "", ErrUnsupported
}

// NewRecognizer returns a CommandRecognizer for the configured listen
// command, or a Recognizer that always fails with ErrUnsupported.
func NewRecognizer(cfg *config.Config, logger *slog.Logger) Recognizer {
	if cfg == nil || strings.TrimSpace(cfg.ListenCommand) == "" {
		return unsupported{}
	}
	return NewCommandRecognizer(strings.Fields(cfg.ListenCommand), logger)
}

// CommandRecognizer runs an external transcriber and reads the transcript
// from its standard output.
type CommandRecognizer struct {
	argv   []string
	logger *slog.Logger
}

func NewCommandRecognizer(argv []string, logger *slog.Logger) *CommandRecognizer {
	if logger == nil {
		logger = observability.Logger()
	}
	return &CommandRecognizer{argv: argv, logger: logger}
}

func (r *CommandRecognizer) Listen(ctx context.Context) (string, error) {
	if len(r.argv) == 0 {
		return "", ErrUnsupported
	}
	out, err := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...).Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("listen command failed", "command", r.argv[0], "error", err)
		return "", fmt.Errorf("running listen command: %w", err)
	}
	transcript := strings.TrimSpace(string(out))
	if transcript == "" {
		return "", ErrNoSpeech
	}
	r.logger.Debug("speech recognized", "chars", len(transcript))
	return transcript, nil
}
