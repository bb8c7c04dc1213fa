package api

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Event is one decoded record from the chat stream. The concrete type is
// always one of MessageEvent, AgentEvent or ErrorEvent.
type Event interface {
	eventType() string
}

// MessageEvent carries a complete conversation message.
type MessageEvent struct {
	Role    Role
	Content string
}

// AgentEvent carries partial state updates keyed by agent node, in the
// order the nodes appear in the record.
type AgentEvent struct {
	Updates []NodeUpdate
}

// NodeUpdate is the state delta emitted by a single agent node.
type NodeUpdate struct {
	Node     string
	Messages []string
	Sources  []string
	// Plan holds the sections when HasPlan is set. An empty plan is still a plan.
	Plan    []Section
	HasPlan bool
}

// Section is one named part of the account plan.
type Section struct {
	Key     string
	Content string
}

// ErrorEvent is an application-level failure reported by the service.
type ErrorEvent struct {
	Message string
}

func (MessageEvent) eventType() string { return "message" }
func (AgentEvent) eventType() string   { return "agent_event" }
func (ErrorEvent) eventType() string   { return "error" }

var ErrInvalidRecord = errors.New("invalid event record")

// DecodeEvent parses one stream line into an Event.
func DecodeEvent(line []byte) (Event, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidRecord)
	}
	rec := gjson.ParseBytes(line)
	if !rec.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidRecord)
	}

	typ := field(rec, "type")
	switch typ.String() {
	case "message":
		role := Role(field(rec, "role").String())
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, role)
		}
		return MessageEvent{Role: role, Content: field(rec, "content").String()}, nil

	case "agent_event":
		data := field(rec, "data")
		if !data.IsObject() {
			return nil, fmt.Errorf("%w: agent_event data is not an object", ErrInvalidRecord)
		}
		var ev AgentEvent
		for _, m := range members(data) {
			ev.Updates = append(ev.Updates, decodeNodeUpdate(m.key, m.value))
		}
		return ev, nil

	case "error":
		return ErrorEvent{Message: field(rec, "message").String()}, nil

	default:
		if !typ.Exists() {
			return nil, fmt.Errorf("%w: missing type", ErrInvalidRecord)
		}
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, typ.String())
	}
}

func decodeNodeUpdate(node string, update gjson.Result) NodeUpdate {
	nu := NodeUpdate{Node: node}
	if !update.IsObject() {
		return nu
	}
	if msgs := field(update, "messages"); msgs.IsArray() {
		nu.Messages = stringList(msgs)
	}
	if srcs := field(update, "sources"); srcs.IsArray() {
		nu.Sources = stringList(srcs)
	}
	if plan := field(update, "plan_sections"); plan.IsObject() {
		nu.HasPlan = true
		nu.Plan = []Section{}
		for _, m := range members(plan) {
			nu.Plan = append(nu.Plan, Section{Key: m.key, Content: m.value.String()})
		}
	}
	return nu
}

// stringList flattens a JSON array. Non-string entries keep their raw JSON.
func stringList(arr gjson.Result) []string {
	var out []string
	for _, v := range arr.Array() {
		out = append(out, v.String())
	}
	return out
}

// field returns the value of key in obj. A duplicated key resolves to its
// last occurrence, as JSON.parse does; gjson's Get would return the first.
func field(obj gjson.Result, key string) gjson.Result {
	var out gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
		}
		return true
	})
	return out
}

type member struct {
	key   string
	value gjson.Result
}

// members returns the entries of obj in document order. A duplicated key
// keeps the position of its first occurrence and the value of its last.
func members(obj gjson.Result) []member {
	var out []member
	seen := make(map[string]int)
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if i, ok := seen[key]; ok {
			out[i].value = v
			return true
		}
		seen[key] = len(out)
		out = append(out, member{key: key, value: v})
		return true
	})
	return out
}
