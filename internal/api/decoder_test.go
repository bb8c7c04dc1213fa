package api

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"research-cli/internal/observability"
)

// chunkReader returns its chunks one Read at a time, like a network body.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func newTestStream(r io.Reader) *Stream {
	return NewStream(io.NopCloser(r), observability.Discard())
}

func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var out []Event
	for s.Next() {
		out = append(out, s.Event())
	}
	return out
}

func TestStreamSingleChunk(t *testing.T) {
	s := newTestStream(strings.NewReader(`{"type":"message","role":"assistant","content":"Hello"}` + "\n"))
	got := collect(t, s)
	want := []Event{MessageEvent{Role: RoleAssistant, Content: "Hello"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %#v, want %#v", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestStreamRecordSplitAcrossReads(t *testing.T) {
	s := newTestStream(&chunkReader{chunks: []string{
		`{"type":"mess`,
		`age","role":"user","content":"hi"}` + "\n",
	}})
	got := collect(t, s)
	want := []Event{MessageEvent{Role: RoleUser, Content: "hi"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %#v, want %#v", got, want)
	}
}

func TestStreamSkipsInvalidLine(t *testing.T) {
	body := "this is not json\n" +
		`{"type":"message","role":"assistant","content":"after"}` + "\n"
	s := newTestStream(strings.NewReader(body))
	got := collect(t, s)
	want := []Event{MessageEvent{Role: RoleAssistant, Content: "after"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %#v, want %#v", got, want)
	}
	events, dropped := s.Stats()
	if events != 1 || dropped != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", events, dropped)
	}
	if s.Err() != nil {
		t.Errorf("decode failures must not surface as Err(): %v", s.Err())
	}
}

func TestStreamBlankLinesNeverProduceEvents(t *testing.T) {
	body := "\n   \n\t\n\r\n" +
		`{"type":"error","message":"boom"}` + "\r\n" +
		"\n\n"
	s := newTestStream(strings.NewReader(body))
	got := collect(t, s)
	want := []Event{ErrorEvent{Message: "boom"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %#v, want %#v", got, want)
	}
}

func TestStreamDropsUnterminatedTrailingRecord(t *testing.T) {
	body := `{"type":"message","role":"assistant","content":"one"}` + "\n" +
		`{"type":"message","role":"assistant","content":"two"}`
	s := newTestStream(strings.NewReader(body))
	got := collect(t, s)
	want := []Event{MessageEvent{Role: RoleAssistant, Content: "one"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %#v, want %#v", got, want)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil", s.Err())
	}
}

const fragmentBody = `{"type":"message","role":"user","content":"plan for Acme"}` + "\n" +
	"\n" +
	`{"type":"agent_event","data":{"research":{"messages":["Researching Acme…"],"sources":["https://acme.example/about"]}}}` + "\n" +
	"garbage line\n" +
	`{"type":"agent_event","data":{"synthesize":{"plan_sections":{"summary":"Acme makes anvils","risks":"Roadrunner"}}}}` + "\n" +
	`{"type":"error","message":"late failure"}` + "\n" +
	`{"type":"message","role":"assistant","content":"cut o`

func TestStreamFragmentationInvariance(t *testing.T) {
	reference := collect(t, newTestStream(strings.NewReader(fragmentBody)))
	if len(reference) != 4 {
		t.Fatalf("reference decode produced %d events, want 4", len(reference))
	}

	// every two-chunk split
	for i := 1; i < len(fragmentBody); i++ {
		s := newTestStream(&chunkReader{chunks: []string{fragmentBody[:i], fragmentBody[i:]}})
		if got := collect(t, s); !reflect.DeepEqual(got, reference) {
			t.Fatalf("split at %d: events = %#v, want %#v", i, got, reference)
		}
	}

	// one byte per read
	s := newTestStream(iotest.OneByteReader(strings.NewReader(fragmentBody)))
	if got := collect(t, s); !reflect.DeepEqual(got, reference) {
		t.Errorf("one-byte reads: events = %#v, want %#v", got, reference)
	}

	// half reads
	s = newTestStream(iotest.HalfReader(strings.NewReader(fragmentBody)))
	if got := collect(t, s); !reflect.DeepEqual(got, reference) {
		t.Errorf("half reads: events = %#v, want %#v", got, reference)
	}
}

func TestStreamTransportErrorReportedOnce(t *testing.T) {
	reset := errors.New("connection reset by peer")
	r := io.MultiReader(
		strings.NewReader(`{"type":"message","role":"assistant","content":"partial"}`+"\n"+`{"type":"mess`),
		iotest.ErrReader(reset),
	)
	s := newTestStream(r)
	got := collect(t, s)
	want := []Event{MessageEvent{Role: RoleAssistant, Content: "partial"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %#v, want %#v", got, want)
	}
	if !errors.Is(s.Err(), reset) {
		t.Fatalf("Err() = %v, want wrapped %v", s.Err(), reset)
	}
	if s.Next() {
		t.Error("Next() after failure should stay false")
	}
	if s.Event() != nil {
		t.Errorf("Event() after end = %#v, want nil", s.Event())
	}
}

func TestStreamOversizedLineSkipped(t *testing.T) {
	huge := `{"type":"message","role":"assistant","content":"` + strings.Repeat("x", maxLineSize) + `"}`
	body := huge + "\n" + `{"type":"message","role":"assistant","content":"small"}` + "\n"
	s := newTestStream(strings.NewReader(body))
	got := collect(t, s)
	want := []Event{MessageEvent{Role: RoleAssistant, Content: "small"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %d events, want only the small one", len(got))
	}
	if _, dropped := s.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestStreamLargeLineWithinLimit(t *testing.T) {
	content := strings.Repeat("plan ", 40000) // larger than the read buffer
	body := `{"type":"message","role":"assistant","content":"` + content + `"}` + "\n"
	got := collect(t, newTestStream(strings.NewReader(body)))
	if len(got) != 1 || got[0].(MessageEvent).Content != content {
		t.Fatalf("large record not reassembled")
	}
}

func TestStreamAll(t *testing.T) {
	body := strings.Repeat(`{"type":"error","message":"e"}`+"\n", 3)
	s := newTestStream(strings.NewReader(body))

	n := 0
	for ev := range s.All() {
		if _, ok := ev.(ErrorEvent); !ok {
			t.Fatalf("unexpected event %T", ev)
		}
		n++
		if n == 2 {
			break
		}
	}
	// the sequence is not restartable; the rest continues from where we stopped
	rest := 0
	for range s.All() {
		rest++
	}
	if n != 2 || rest != 1 {
		t.Errorf("consumed %d then %d, want 2 then 1", n, rest)
	}
	if s.Next() {
		t.Error("exhausted stream should not yield again")
	}
}

func TestStreamClosesBodyOnceAtEnd(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader(`{"type":"error","message":"x"}` + "\n")}
	s := NewStream(body, observability.Discard())
	collect(t, s)
	if body.closed != 1 {
		t.Errorf("body closed %d times at end, want 1", body.closed)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if body.closed != 1 {
		t.Errorf("extra Close() reached body: closed = %d", body.closed)
	}
}

func TestStreamCloseEndsStream(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader(
		`{"type":"message","role":"assistant","content":"one"}` + "\n" +
			`{"type":"message","role":"assistant","content":"two"}` + "\n" +
			`{"type":"message","role":"assistant","content":"three"}` + "\n")}
	s := NewStream(body, observability.Discard())

	if !s.Next() {
		t.Fatalf("Next() = false before Close, err = %v", s.Err())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := collect(t, s); len(got) != 0 {
		t.Errorf("Next yielded %d buffered events after Close, want 0", len(got))
	}
	if s.Event() != nil {
		t.Errorf("Event() = %#v after Close, want nil", s.Event())
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v after Close, want nil", err)
	}
	if body.closed != 1 {
		t.Errorf("body closed %d times, want 1", body.closed)
	}
}
