package conversation

import (
	"strings"

	"research-cli/internal/api"
	"research-cli/internal/service"
)

// Plan is an immutable, ordered snapshot of the account plan sections.
// Updates produce a new Plan so earlier snapshots stay valid for renderers.
type Plan struct {
	sections []api.Section
}

// NewPlan copies sections into a plan. A repeated key keeps its first
// position and its last content.
func NewPlan(sections []api.Section) *Plan {
	p := &Plan{sections: make([]api.Section, 0, len(sections))}
	for _, s := range sections {
		if i := p.index(s.Key); i >= 0 {
			p.sections[i].Content = s.Content
			continue
		}
		p.sections = append(p.sections, s)
	}
	return p
}

func (p *Plan) index(key string) int {
	for i, s := range p.sections {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// Len returns the number of sections.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.sections)
}

// Keys returns section keys in plan order.
func (p *Plan) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.sections))
	for i, s := range p.sections {
		keys[i] = s.Key
	}
	return keys
}

// Get returns the content of a section.
func (p *Plan) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	if i := p.index(key); i >= 0 {
		return p.sections[i].Content, true
	}
	return "", false
}

// Sections returns a copy of the sections in order.
func (p *Plan) Sections() []api.Section {
	if p == nil {
		return nil
	}
	return append([]api.Section(nil), p.sections...)
}

// With returns a new plan where key holds content. A new key is appended.
func (p *Plan) With(key, content string) *Plan {
	next := &Plan{sections: p.Sections()}
	if i := next.index(key); i >= 0 {
		next.sections[i].Content = content
	} else {
		next.sections = append(next.sections, api.Section{Key: key, Content: content})
	}
	return next
}

// Markdown renders the plan as one markdown document with a heading per section.
func (p *Plan) Markdown() string {
	var b strings.Builder
	b.WriteString("# Strategic Account Plan\n")
	for _, s := range p.Sections() {
		b.WriteString("\n")
		b.WriteString(SectionMarkdown(s.Key, s.Content))
	}
	return b.String()
}

// SectionMarkdown renders one section with its heading.
func SectionMarkdown(key, content string) string {
	return "## " + service.SectionHeading(key) + "\n\n" + strings.TrimSpace(content) + "\n"
}
