package service

import (
	"testing"
)

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "plain text", "plain text"},
		{"bold", "**Acme** is growing", "Acme is growing"},
		{"heading", "## Summary", "Summary"},
		{"code", "run `ls`", "run ls"},
		{"underscores", "next_steps", "nextsteps"},
		{"link removed", "see [the report](https://x.example) now", "see  now"},
		{"emoji kept", "✅ Done", "✅ Done"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanForSpeech(tt.input)
			if got != tt.want {
				t.Errorf("CleanForSpeech(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSectionName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"summary", "summary"},
		{"next_steps", "next steps"},
		{"key_stakeholders_and_roles", "key stakeholders and roles"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SectionName(tt.input); got != tt.want {
				t.Errorf("SectionName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSectionHeading(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"summary", "Summary"},
		{"next_steps", "Next Steps"},
		{"swot_analysis", "Swot Analysis"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SectionHeading(tt.input); got != tt.want {
				t.Errorf("SectionHeading(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatchSection(t *testing.T) {
	keys := []string{"summary", "next_steps", "key_stakeholders", "key_risks"}
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"summary", "summary", true},
		{"Summary", "summary", true},
		{"next steps", "next_steps", true},
		{"NEXT_STEPS", "next_steps", true},
		{"sum", "summary", true},
		{"key", "", false}, // ambiguous prefix
		{"key_r", "key_risks", true},
		{"pricing", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := MatchSection(keys, tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchSection(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"https://www.acme.example/about/", 60, "acme.example/about"},
		{"http://news.example.com", 60, "news.example.com"},
		{"not a url", 60, "not a url"},
		{"https://a.example/very/long/path/to/article", 16, "a.example/ver..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SourceLabel(tt.input, tt.max); got != tt.want {
				t.Errorf("SourceLabel(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
		{"abc", 0, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Truncate(tt.input, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}
