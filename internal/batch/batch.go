// Package batch replays research scripts against the research service.
// A script is a YAML list of companies, each with the prompts to send in
// order. Every company gets its own conversation, so follow-up prompts carry
// the history of the earlier ones.
package batch

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/conversation"
	"research-cli/internal/observability"

	"gopkg.in/yaml.v3"
)

// DefaultPrompt is sent for companies that list no prompts.
const DefaultPrompt = "Research {company} and build a strategic account plan."

// DefaultScript is used when no script file is given.
//
//go:embed default.yaml
var DefaultScript []byte

type script struct {
	Companies []Company `yaml:"companies"`
}

// Company is one entry in a script. "{company}" in a prompt is replaced by Name.
type Company struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Prompts []string `yaml:"prompts"`
}

// Turns returns the prompts to send, with the company name filled in.
func (c Company) Turns() []string {
	prompts := c.Prompts
	if len(prompts) == 0 {
		prompts = []string{DefaultPrompt}
	}
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, strings.ReplaceAll(p, "{company}", c.Name))
	}
	return out
}

// Result records what one company's conversation produced.
type Result struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Turns    int      `json:"turns"`
	Messages []string `json:"messages"`
	Sections []string `json:"sections,omitempty"`
	Sources  []string `json:"sources"`
	// Errors holds error events reported by the service. They do not stop the run.
	Errors []string `json:"errors,omitempty"`
}

// Load parses the script at filename. An empty filename loads DefaultScript.
func Load(filename string) ([]Company, error) {
	raw := DefaultScript
	if filename != "" {
		var err error
		raw, err = os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("reading script: %w", err)
		}
	}
	var s script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	for i, c := range s.Companies {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parsing script: company %d has no name", i+1)
		}
		if c.ID == "" {
			s.Companies[i].ID = fmt.Sprintf("CO-%03d", i+1)
		}
	}
	return s.Companies, nil
}

// Pick returns the first count companies, or all of them when count <= 0.
func Pick(all []Company, count int) []Company {
	if count <= 0 || count >= len(all) {
		return all
	}
	return all[:count]
}

// Runner sends scripts through a ResearchAPI one turn at a time.
type Runner struct {
	Client api.ResearchAPI
	Logger *slog.Logger
	// OnStart, if set, is called before a company's first prompt.
	OnStart func(c Company)
	// OnEvent, if set, sees every event after it is applied.
	OnEvent func(c Company, ev api.Event, tr conversation.Transition)
}

// Run replays companies in order. On the first transport failure or
// cancellation it returns the results gathered so far, including the partial
// one, with a wrapped error. A cancelled turn is not recorded as a failure.
func (r *Runner) Run(ctx context.Context, companies []Company) ([]Result, error) {
	results := make([]Result, 0, len(companies))
	for _, c := range companies {
		res, err := r.runCompany(ctx, c)
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("%s (%s): %w", c.ID, c.Name, err)
		}
	}
	return results, nil
}

func (r *Runner) runCompany(ctx context.Context, c Company) (Result, error) {
	log := r.logger().With("company_id", c.ID)
	state := conversation.NewState()
	res := Result{ID: c.ID, Name: c.Name}
	if r.OnStart != nil {
		r.OnStart(c)
	}

	var turnErr error
	for _, prompt := range c.Turns() {
		req, err := state.Submit(prompt)
		if err != nil {
			if errors.Is(err, conversation.ErrEmpty) {
				continue
			}
			turnErr = err
			break
		}
		res.Turns++
		log.Info("batch turn started", "turn", res.Turns)

		turnErr = r.turn(ctx, c, state, req, &res)
		state.Finish()
		if turnErr != nil {
			if ctx.Err() == nil {
				state.FailTransport(turnErr)
			}
			break
		}
	}

	// Skip the greeting; only what the run produced is reported.
	for _, m := range state.Messages()[1:] {
		res.Messages = append(res.Messages, m.Text)
	}
	res.Sources = append([]string{}, state.Sources()...)
	res.Sections = state.Plan().Keys()

	switch {
	case turnErr != nil && ctx.Err() != nil:
		log.Info("batch cancelled", "turns", res.Turns)
	case turnErr != nil:
		log.Error("batch turn failed", "error", turnErr)
	}
	return res, turnErr
}

func (r *Runner) turn(ctx context.Context, c Company, state *conversation.State, req *api.ChatRequest, res *Result) error {
	stream, err := r.Client.Chat(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for ev := range stream.All() {
		tr := state.Apply(ev)
		if e, ok := ev.(api.ErrorEvent); ok {
			res.Errors = append(res.Errors, e.Message)
		}
		if r.OnEvent != nil {
			r.OnEvent(c, ev, tr)
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return observability.Discard()
	}
	return r.Logger
}
