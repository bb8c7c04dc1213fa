package api

import "context"

// ResearchAPI defines the interface for the research service client.
// *Client satisfies this interface. TUI and tests can use mock implementations.
type ResearchAPI interface {
	Chat(ctx context.Context, req *ChatRequest) (*Stream, error)
}
