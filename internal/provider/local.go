package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loka-network/loka/internal/domain"
)

// LocalProvider talks to an on-device HTTP inference engine (e.g. a local
// llama.cpp server) over a newline-delimited JSON streaming protocol. It is
// always zero-cost.
type LocalProvider struct {
	name    string
	model   string
	baseURL string
	client  *http.Client
}

// NewLocalProvider constructs an adapter for one local inference endpoint.
func NewLocalProvider(name, model, baseURL string) *LocalProvider {
	return &LocalProvider{
		name:    name,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *LocalProvider) Name() string  { return p.name }
func (p *LocalProvider) Model() string { return p.model }

func (p *LocalProvider) CostPer1kInputEUR() float64  { return 0 }
func (p *LocalProvider) CostPer1kOutputEUR() float64 { return 0 }

type localChatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float32          `json:"temperature,omitempty"`
	TopP        float32          `json:"top_p,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stop        []string         `json:"stop,omitempty"`
	Stream      bool             `json:"stream"`
}

type localChatLine struct {
	Content      string `json:"content"`
	Done         bool   `json:"done"`
	PromptTokens int    `json:"prompt_tokens"`
	EvalTokens   int    `json:"eval_tokens"`
}

func (p *LocalProvider) Complete(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (domain.CompletionResult, error) {
	start := time.Now()
	body, err := json.Marshal(localChatRequest{
		Model: p.model, Messages: messages, Temperature: opts.Temperature,
		TopP: opts.TopP, MaxTokens: opts.MaxTokens, Stop: opts.Stop, Stream: false,
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("local provider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("local provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.CompletionResult{}, fmt.Errorf("%w: local engine returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var line localChatLine
	if err := json.NewDecoder(resp.Body).Decode(&line); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("local provider: decode response: %w", err)
	}

	return domain.CompletionResult{
		Content:      line.Content,
		Model:        p.model,
		InputTokens:  line.PromptTokens,
		OutputTokens: line.EvalTokens,
		CostEUR:      0,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *LocalProvider) Stream(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (<-chan domain.Fragment, error) {
	body, err := json.Marshal(localChatRequest{
		Model: p.model, Messages: messages, Temperature: opts.Temperature,
		TopP: opts.TopP, MaxTokens: opts.MaxTokens, Stop: opts.Stop, Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("local provider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("local provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: local engine returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk localChatLine
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			frag := domain.Fragment{Text: chunk.Content, Done: chunk.Done}
			select {
			case out <- frag:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()

	return out, nil
}

func (p *LocalProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
