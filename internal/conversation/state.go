// Package conversation holds the in-memory chat state and the transitions
// applied to it by user actions and decoded stream events.
//
// State is owned by a single controller goroutine. Nothing here locks.
package conversation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/service"
)

const (
	Greeting      = "Hi! I'm your AI Research Assistant. I can help you research companies and generate strategic account plans. Which company would you like to learn about?"
	PlanReadyText = "✅ I've generated a comprehensive Strategic Account Plan. Type /plan to view it, and feel free to ask me to update any section!"

	errorPrefix      = "❌ Error: "
	connErrorPrefix  = "❌ Connection Error: "
	sectionSavedText = "✅ I've updated the **%s** section for you!"
)

var (
	ErrEmpty          = errors.New("message is empty")
	ErrBusy           = errors.New("a response is still streaming")
	ErrNoPlan         = errors.New("no account plan has been generated yet")
	ErrUnknownSection = errors.New("unknown plan section")
	ErrAlreadyEditing = errors.New("another section is already being edited")
	ErrNotEditing     = errors.New("no section is being edited")
)

type Message struct {
	Role api.Role
	Text string
	// Failed marks error and connection-error notices added by the client,
	// as opposed to text the service sent.
	Failed bool
}

// Transition reports what a single Apply changed.
type Transition struct {
	Appended     []Message
	Speak        []string
	NewSources   []string
	PlanReplaced bool
}

type editSession struct {
	key   string
	draft string
}

type State struct {
	messages []Message
	sources  []string
	plan     *Plan
	edit     *editSession
	inFlight bool
}

// NewState returns a conversation seeded with the assistant greeting.
func NewState() *State {
	return &State{
		messages: []Message{{Role: api.RoleAssistant, Text: Greeting}},
	}
}

// Messages returns the conversation in arrival order.
func (s *State) Messages() []Message {
	return slices.Clone(s.messages)
}

// Sources returns every source collected so far, duplicates included.
func (s *State) Sources() []string {
	return slices.Clone(s.sources)
}

// Plan returns the current plan snapshot, or nil before one is generated.
func (s *State) Plan() *Plan {
	return s.plan
}

// InFlight reports whether a turn is waiting on the stream.
func (s *State) InFlight() bool {
	return s.inFlight
}

// History maps the conversation to the wire format sent with a request.
func (s *State) History() []api.HistoryEntry {
	h := make([]api.HistoryEntry, len(s.messages))
	for i, m := range s.messages {
		h[i] = api.HistoryEntry{Role: m.Role, Content: m.Text}
	}
	return h
}

// Submit starts a user turn. The request carries the history as it was
// before the new message, then the message is appended. Only one turn may
// be in flight.
func (s *State) Submit(text string) (*api.ChatRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmpty
	}
	if s.inFlight {
		return nil, ErrBusy
	}
	req := &api.ChatRequest{
		Message:             text,
		ConversationHistory: s.History(),
	}
	s.append(api.RoleUser, text)
	s.inFlight = true
	return req, nil
}

// Finish ends the current turn, however it ended.
func (s *State) Finish() {
	s.inFlight = false
}

// Apply folds one decoded event into the state.
func (s *State) Apply(ev api.Event) Transition {
	var t Transition
	switch ev := ev.(type) {
	case api.MessageEvent:
		t.Appended = append(t.Appended, s.append(ev.Role, ev.Content))
		if ev.Role == api.RoleAssistant {
			t.Speak = append(t.Speak, ev.Content)
		}

	case api.AgentEvent:
		for _, u := range ev.Updates {
			for _, text := range u.Messages {
				t.Appended = append(t.Appended, s.append(api.RoleAssistant, text))
				t.Speak = append(t.Speak, text)
			}
			if len(u.Sources) > 0 {
				s.sources = append(s.sources, u.Sources...)
				t.NewSources = append(t.NewSources, u.Sources...)
			}
			if u.HasPlan {
				s.plan = NewPlan(u.Plan)
				t.PlanReplaced = true
				t.Appended = append(t.Appended, s.append(api.RoleAssistant, PlanReadyText))
				t.Speak = append(t.Speak, PlanReadyText)
			}
		}

	case api.ErrorEvent:
		t.Appended = append(t.Appended, s.appendFailure(errorPrefix+ev.Message))
	}
	return t
}

// FailTransport records a request or stream failure as an assistant message.
func (s *State) FailTransport(err error) Message {
	return s.appendFailure(connErrorPrefix + err.Error())
}

// Editing reports the section under edit, if any.
func (s *State) Editing() (string, bool) {
	if s.edit == nil {
		return "", false
	}
	return s.edit.key, true
}

// Draft returns the current draft of the section under edit.
func (s *State) Draft() string {
	if s.edit == nil {
		return ""
	}
	return s.edit.draft
}

// BeginEdit opens key for editing and returns its current content as the draft.
func (s *State) BeginEdit(key string) (string, error) {
	if s.plan == nil {
		return "", ErrNoPlan
	}
	if s.edit != nil {
		return "", fmt.Errorf("%w: %s", ErrAlreadyEditing, s.edit.key)
	}
	content, ok := s.plan.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSection, key)
	}
	s.edit = &editSession{key: key, draft: content}
	return content, nil
}

// UpdateDraft replaces the in-progress draft.
func (s *State) UpdateDraft(content string) error {
	if s.edit == nil {
		return ErrNotEditing
	}
	s.edit.draft = content
	return nil
}

// SaveEdit commits content into the plan, confirms it in the conversation
// and closes the edit session.
func (s *State) SaveEdit(content string) (Message, error) {
	if s.edit == nil {
		return Message{}, ErrNotEditing
	}
	key := s.edit.key
	s.plan = s.plan.With(key, content)
	s.edit = nil
	return s.append(api.RoleAssistant, fmt.Sprintf(sectionSavedText, service.SectionName(key))), nil
}

// CancelEdit drops the edit session without touching the plan.
func (s *State) CancelEdit() {
	s.edit = nil
}

func (s *State) append(role api.Role, text string) Message {
	m := Message{Role: role, Text: text}
	s.messages = append(s.messages, m)
	return m
}

func (s *State) appendFailure(text string) Message {
	m := Message{Role: api.RoleAssistant, Text: text, Failed: true}
	s.messages = append(s.messages, m)
	return m
}
