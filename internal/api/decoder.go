package api

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"research-cli/internal/observability"
)

// maxLineSize bounds a single record. Generated plans can be large.
const maxLineSize = 4 * 1024 * 1024

var errLineTooLong = errors.New("record exceeds maximum line size")

// Stream decodes a newline-delimited JSON response body into Events.
// It is lazy and single-use: Next pulls from the body only when called,
// and once it returns false the stream is finished for good.
//
// Unparseable lines are logged and skipped. A trailing line without a
// newline is dropped when the body ends. A read error other than EOF ends
// the stream and is reported by Err.
type Stream struct {
	body   io.ReadCloser
	rd     *bufio.Reader
	logger *slog.Logger

	pending []byte // partial record carried across reads
	ev      Event
	err     error
	done    bool

	events  int
	dropped int

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps body. A nil logger uses the package logger.
func NewStream(body io.ReadCloser, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = observability.Logger()
	}
	return &Stream{
		body:   body,
		rd:     bufio.NewReaderSize(body, 64*1024),
		logger: logger,
	}
}

// Next advances to the next event. It returns false when the body is
// exhausted, a transport error occurred, or the stream was closed.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		line, err := s.readLine()
		if errors.Is(err, errLineTooLong) {
			s.dropped++
			s.logger.Warn("dropping oversized stream record", "limit", maxLineSize)
			continue
		}
		if err != nil {
			s.finish(err)
			return false
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		ev, err := DecodeEvent(line)
		if err != nil {
			s.dropped++
			s.logger.Warn("skipping undecodable stream record", "error", err, "line", truncate(line, 200))
			continue
		}
		s.ev = ev
		s.events++
		return true
	}
}

// Event returns the event produced by the last successful Next.
func (s *Stream) Event() Event {
	return s.ev
}

// Err returns the transport error that ended the stream, if any.
// A clean end of body is not an error.
func (s *Stream) Err() error {
	return s.err
}

// Stats reports how many events were produced and how many lines were dropped.
func (s *Stream) Stats() (events, dropped int) {
	return s.events, s.dropped
}

// All returns the remaining events as a sequence. Ranging over it consumes
// the stream; check Err afterwards.
func (s *Stream) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for s.Next() {
			if !yield(s.Event()) {
				return
			}
		}
	}
}

// Close releases the body and ends the stream: later Next calls return
// false, even for records already buffered. Safe to call more than once.
// Like Next, it must be called from the goroutine that consumes the stream.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		s.ev = nil
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// readLine returns the next newline-terminated record, reassembling it
// across short reads. Bytes left without a terminator at EOF are discarded.
func (s *Stream) readLine() ([]byte, error) {
	s.pending = s.pending[:0]
	oversized := false
	for {
		chunk, err := s.rd.ReadSlice('\n')
		if !oversized {
			if len(s.pending)+len(chunk) > maxLineSize {
				oversized = true
				s.pending = s.pending[:0]
			} else {
				s.pending = append(s.pending, chunk...)
			}
		}

		switch {
		case err == nil:
			if oversized {
				return nil, errLineTooLong
			}
			return s.pending, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			if err == io.EOF && len(bytes.TrimSpace(s.pending)) > 0 {
				s.logger.Debug("discarding unterminated trailing record", "bytes", len(s.pending))
			}
			s.pending = s.pending[:0]
			return nil, err
		}
	}
}

func (s *Stream) finish(err error) {
	s.done = true
	s.ev = nil
	if err != io.EOF {
		s.err = fmt.Errorf("reading stream: %w", err)
		s.logger.Error("stream ended with error", "error", err, "events", s.events)
	} else {
		s.logger.Info("stream finished", "events", s.events, "dropped", s.dropped)
	}
	_ = s.Close()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
