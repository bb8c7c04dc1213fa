package tui

import (
	"context"

	"research-cli/internal/api"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Messages sent from stream goroutine to Bubble Tea ──────────────────────

// Every stream message carries the turn that produced it so anything left
// over from a cancelled turn can be ignored.

type streamEventMsg struct {
	turn int
	ev   api.Event
}

type streamDoneMsg struct {
	turn int
	err  error
}

// ─── Stream command ─────────────────────────────────────────────────────────
//
// Sends the request in a goroutine and forwards each decoded event through
// a channel. The model reads one message at a time with waitForStream and
// schedules the next read after handling it, so events are applied in the
// order the server sent them.

func beginStream(ctx context.Context, client api.ResearchAPI, req *api.ChatRequest, turn int) <-chan tea.Msg {
	ch := make(chan tea.Msg, 64)

	go func() {
		defer close(ch)

		send := func(msg tea.Msg) bool {
			select {
			case ch <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream, err := client.Chat(ctx, req)
		if err != nil {
			send(streamDoneMsg{turn: turn, err: err})
			return
		}
		defer stream.Close()

		for ev := range stream.All() {
			if !send(streamEventMsg{turn: turn, ev: ev}) {
				return
			}
		}
		send(streamDoneMsg{turn: turn, err: stream.Err()})
	}()

	return ch
}

// waitForStream reads the next message from the channel. A closed channel
// without a done message means the turn was cancelled; nothing is reported.
func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
