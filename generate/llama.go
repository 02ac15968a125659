package generate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
	"github.com/pck00223-oss/ai-rag-engine/postprocess"
)

// Client streams chat completions from an OpenAI-compatible API, one content
// delta per fragment.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	topK        int
	topP        float64
	seed        int
	stop        []string
	client      *http.Client
}

// NewClient creates a streaming client from the LLM config. Env overrides are
// applied by the caller via the Resolve helpers.
func NewClient(baseURL, apiKey string, llm ragengine.LLMConfig) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       llm.Model,
		maxTokens:   llm.MaxTokens,
		temperature: llm.Temperature,
		topK:        llm.TopK,
		topP:        llm.TopP,
		seed:        llm.Seed,
		stop:        llm.Stop,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopK        int           `json:"top_k,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Seed        int           `json:"seed,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream opens a streaming completion. The stop literals are intentionally
// not forwarded to the server; halting is decided client-side so the full
// trim-and-normalize pass sees the raw text.
func (c *Client) Stream(ctx context.Context, system, user string) (postprocess.Sampler, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopK:        c.topK,
		TopP:        c.topP,
		Seed:        c.seed,
		Stream:      true,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// Close is a no-op (no subprocess to manage).
func (c *Client) Close() {}

// sseStream reads server-sent events and yields one fragment per content
// delta, re-aligned to rune boundaries.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	coal    utf8Coalescer
	done    bool
}

// Next returns the next fragment. After an EOS fragment it keeps returning
// empty EOS fragments.
func (s *sseStream) Next(ctx context.Context) (postprocess.Fragment, error) {
	if s.done {
		return postprocess.Fragment{EOS: true}, nil
	}
	if err := ctx.Err(); err != nil {
		s.close()
		return postprocess.Fragment{}, err
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return s.finish(nil)
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.close()
			return postprocess.Fragment{}, fmt.Errorf("parse stream event: %w", err)
		}
		if chunk.Error != nil {
			s.close()
			return postprocess.Fragment{}, fmt.Errorf("API error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return s.finish([]byte(choice.Delta.Content))
		}

		text := s.coal.push([]byte(choice.Delta.Content))
		if text == "" {
			continue
		}
		return postprocess.Fragment{Text: text}, nil
	}

	if err := s.scanner.Err(); err != nil {
		s.close()
		return postprocess.Fragment{}, fmt.Errorf("read stream: %w", err)
	}
	// Server closed the stream without a terminator event.
	return s.finish(nil)
}

func (s *sseStream) finish(tail []byte) (postprocess.Fragment, error) {
	text := s.coal.push(tail) + s.coal.flush()
	s.done = true
	s.close()
	return postprocess.Fragment{Text: text, EOS: true}, nil
}

func (s *sseStream) close() {
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
}
