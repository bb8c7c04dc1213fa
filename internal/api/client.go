package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"research-cli/internal/config"
	"research-cli/internal/observability"
)

const chatPath = "/api/chat"

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for the configured endpoint. The HTTP client has
// no overall timeout: a research turn lasts as long as the service streams.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = observability.Logger()
	}
	return &Client{
		baseURL:    cfg.BaseURL(),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set("X-Request-ID", requestID)
}

// --- Chat (Streaming) ---

type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message             string         `json:"message"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, body)
}

// Chat sends one user turn and returns the decoded response stream.
// The caller must drain or Close the stream. Cancelling ctx aborts the body.
func (c *Client) Chat(ctx context.Context, chatReq *ChatRequest) (*Stream, error) {
	if chatReq.ConversationHistory == nil {
		chatReq.ConversationHistory = []HistoryEntry{}
	}
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	c.setHeaders(req, requestID)

	log := c.logger.With("request_id", requestID)
	log.Info("sending chat request", "history", len(chatReq.ConversationHistory))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("chat request failed", "error", err)
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		log.Error("chat request rejected", "status", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(errBody)}
	}

	return NewStream(resp.Body, log), nil
}
