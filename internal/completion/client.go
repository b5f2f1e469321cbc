// Package completion wraps the upstream OpenAI-compatible streaming
// chat-completions API behind a per-call timeout and a uniform token stream.
package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jstello/OneInc/internal/config"
)

// TokenStream is a finite, non-restartable lazy sequence of text fragments.
// Recv returns io.EOF at normal end of stream and a typed error otherwise.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Streamer starts one streaming completion per call. It exists so the
// orchestrator can be tested against a fake upstream.
type Streamer interface {
	Stream(ctx context.Context, instruction, text string) (TokenStream, error)
}

// Client calls the upstream chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration

	// httpClient has no Timeout of its own: the per-call context deadline
	// governs the request and the consumption of the stream together.
	httpClient *http.Client
}

var _ Streamer = (*Client)(nil)

// NewClient builds a client from upstream configuration.
func NewClient(cfg config.Upstream) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{},
	}
}

// Stream issues one streaming completion with the style instruction as the
// system message and text as the user message. The whole call, including
// reading every fragment, is bounded by the configured timeout. The caller
// must Close the returned stream.
func (c *Client) Stream(ctx context.Context, instruction, text string) (TokenStream, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: roleSystem, Content: instruction},
			{Role: roleUser, Content: text},
		},
		Stream:      true,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, classify(callCtx, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	return &Stream{
		ctx:     callCtx,
		cancel:  cancel,
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// Stream is a finite, non-restartable sequence of text fragments in arrival
// order.
type Stream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

// Recv returns the next non-empty content fragment. It returns io.EOF when
// the upstream closes the stream normally, ErrTimeout when the per-call
// deadline fires mid-stream, and *UpstreamError for anything else. The
// caller's context cancellation is passed through unchanged.
func (s *Stream) Recv() (string, error) {
	if s.closed {
		return "", io.EOF
	}

	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", classify(s.ctx, err)
			}
			return "", io.EOF
		}

		line := s.scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", &UpstreamError{
				Detail: fmt.Sprintf("malformed stream chunk: %s", data),
				Cause:  err,
			}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

// Close abandons the stream and releases the connection. Safe to call more
// than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.body.Close()
}

// classify maps a transport error to the adapter's error taxonomy. The call
// context distinguishes our own deadline from everything else; the caller's
// cancellation is not an upstream fault and propagates as-is.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return &UpstreamError{Detail: err.Error(), Cause: err}
}
