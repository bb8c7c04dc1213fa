// Package speech reads assistant replies aloud and captures spoken input
// by shelling out to the platform's speech tools.
package speech

import (
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"research-cli/internal/config"
	"research-cli/internal/observability"
	"research-cli/internal/service"
)

// Speaker reads text aloud. Speak returns immediately and never fails
// visibly; a newer utterance interrupts the one playing.
type Speaker interface {
	Speak(text string)
	Stop()
}

// Nop is the Speaker used when no speech engine is available.
type Nop struct{}

func (Nop) Speak(string) {}
func (Nop) Stop()        {}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// engines are tried in order when no speak command is configured.
var engines = []string{"say", "espeak-ng", "espeak", "spd-say"}

// DetectEngine returns the command line used for speech output, or nil
// when none is configured or installed.
func DetectEngine(cfg *config.Config) []string {
	if cfg != nil && strings.TrimSpace(cfg.SpeakCommand) != "" {
		return strings.Fields(cfg.SpeakCommand)
	}
	for _, name := range engines {
		if name == "say" && runtime.GOOS != "darwin" {
			continue
		}
		if path, err := lookPath(name); err == nil {
			if name == "spd-say" {
				// spd-say returns before speaking unless told to wait
				return []string{path, "--wait"}
			}
			return []string{path}
		}
	}
	return nil
}

// NewSpeaker returns a CommandSpeaker for the detected engine, or Nop.
func NewSpeaker(cfg *config.Config, logger *slog.Logger) Speaker {
	argv := DetectEngine(cfg)
	if len(argv) == 0 {
		return Nop{}
	}
	return NewCommandSpeaker(argv, logger)
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// CommandSpeaker runs argv with the cleaned text appended as the last
// argument. At most one process plays at a time.
type CommandSpeaker struct {
	argv   []string
	logger *slog.Logger

	mu  sync.Mutex
	cur *process
}

func NewCommandSpeaker(argv []string, logger *slog.Logger) *CommandSpeaker {
	if logger == nil {
		logger = observability.Logger()
	}
	return &CommandSpeaker{argv: argv, logger: logger}
}

func (s *CommandSpeaker) Speak(text string) {
	text = service.CleanForSpeech(text)
	if text == "" || len(s.argv) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	args := append(append([]string(nil), s.argv[1:]...), text)
	cmd := exec.Command(s.argv[0], args...)
	if err := cmd.Start(); err != nil {
		s.logger.Debug("speech engine failed to start", "engine", s.argv[0], "error", err)
		return
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	s.cur = p

	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("speech engine exited", "engine", s.argv[0], "error", err)
		}
		close(p.done)
		s.mu.Lock()
		if s.cur == p {
			s.cur = nil
		}
		s.mu.Unlock()
	}()
}

// Stop interrupts the current utterance, if any.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *CommandSpeaker) stopLocked() {
	if s.cur == nil {
		return
	}
	if err := s.cur.cmd.Process.Kill(); err != nil {
		s.logger.Debug("stopping speech engine", "error", err)
	}
	s.cur = nil
}
