package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/loka-network/loka/internal/domain"
)

// CloudProvider adapts a paid vendor's chat-completions endpoint. Most
// vendors in the catalog speak an OpenAI-compatible request/response shape
// and an SSE stream, so a single adapter covers them all by endpoint and
// header configuration rather than one bespoke type per vendor.
type CloudProvider struct {
	vendor       string
	model        string
	endpoint     string
	apiKey       string
	authHeader   string
	authPrefix   string
	costInEUR    float64
	costOutEUR   float64
	client       *http.Client
}

// CloudConfig configures one vendor adapter instance.
type CloudConfig struct {
	Vendor     string
	Model      string
	Endpoint   string
	APIKey     string
	AuthHeader string // defaults to "Authorization"
	AuthPrefix string // defaults to "Bearer "
}

// NewCloudProvider builds an adapter from explicit configuration and the
// vendor's published catalog rates.
func NewCloudProvider(cfg CloudConfig) *CloudProvider {
	entry := Lookup(cfg.Vendor)
	costIn, costOut := 0.0, 0.0
	if entry != nil {
		costIn, costOut = entry.CostPer1kInputEUR, entry.CostPer1kOutputEUR
	}
	authHeader := cfg.AuthHeader
	if authHeader == "" {
		authHeader = "Authorization"
	}
	authPrefix := cfg.AuthPrefix
	if authPrefix == "" && authHeader == "Authorization" {
		authPrefix = "Bearer "
	}
	return &CloudProvider{
		vendor:     cfg.Vendor,
		model:      cfg.Model,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		authHeader: authHeader,
		authPrefix: authPrefix,
		costInEUR:  costIn,
		costOutEUR: costOut,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// BuildFromEnvironment constructs one CloudProvider per catalog entry whose
// environment variable is set, per the gateway's "missing key at startup"
// rule: an unconfigured vendor is simply absent from the returned slice.
func BuildFromEnvironment(lookupEnv func(string) (string, bool), endpoints map[string]string) []*CloudProvider {
	var out []*CloudProvider
	for _, entry := range Catalog {
		key, ok := lookupEnv(entry.EnvKey)
		if !ok || key == "" {
			continue
		}
		endpoint := endpoints[entry.Vendor]
		out = append(out, NewCloudProvider(CloudConfig{
			Vendor:   entry.Vendor,
			Model:    entry.DefaultModel,
			Endpoint: endpoint,
			APIKey:   key,
		}))
	}
	return out
}

// Getenv is the default lookup passed to BuildFromEnvironment.
func Getenv(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (p *CloudProvider) Name() string  { return p.vendor }
func (p *CloudProvider) Model() string { return p.model }

func (p *CloudProvider) CostPer1kInputEUR() float64  { return p.costInEUR }
func (p *CloudProvider) CostPer1kOutputEUR() float64 { return p.costOutEUR }

type cloudChatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float32          `json:"temperature,omitempty"`
	TopP        float32          `json:"top_p,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stop        []string         `json:"stop,omitempty"`
	Stream      bool             `json:"stream"`
}

type cloudChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *CloudProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(p.authHeader, p.authPrefix+p.apiKey)
	return req, nil
}

func (p *CloudProvider) Complete(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (domain.CompletionResult, error) {
	start := time.Now()
	body, err := json.Marshal(cloudChatRequest{
		Model: p.model, Messages: messages, Temperature: opts.Temperature,
		TopP: opts.TopP, MaxTokens: opts.MaxTokens, Stop: opts.Stop, Stream: false,
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("%s provider: marshal request: %w", p.vendor, err)
	}

	req, err := p.newRequest(ctx, body)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("%s provider: build request: %w", p.vendor, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, p.vendor, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.CompletionResult{}, fmt.Errorf("%w: %s returned %d", domain.ErrProviderUnavailable, p.vendor, resp.StatusCode)
	}

	var parsed cloudChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("%s provider: decode response: %w", p.vendor, err)
	}
	if len(parsed.Choices) == 0 {
		return domain.CompletionResult{}, fmt.Errorf("%s provider: empty choices in response", p.vendor)
	}

	inTok, outTok := parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens
	return domain.CompletionResult{
		Content:      parsed.Choices[0].Message.Content,
		Model:        p.model,
		InputTokens:  inTok,
		OutputTokens: outTok,
		CostEUR:      domain.EstimateCost(p, inTok, outTok),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *CloudProvider) Stream(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (<-chan domain.Fragment, error) {
	body, err := json.Marshal(cloudChatRequest{
		Model: p.model, Messages: messages, Temperature: opts.Temperature,
		TopP: opts.TopP, MaxTokens: opts.MaxTokens, Stop: opts.Stop, Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s provider: marshal request: %w", p.vendor, err)
	}

	req, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%s provider: build request: %w", p.vendor, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, p.vendor, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrProviderUnavailable, p.vendor, resp.StatusCode)
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		streamSSE(ctx, scanner, out)
	}()

	return out, nil
}

type sseDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// streamSSE reads a standard "data: {json}\n\n" stream and forwards content
// deltas until a "data: [DONE]" sentinel or the stream closes.
func streamSSE(ctx context.Context, r *bufio.Scanner, out chan<- domain.Fragment) {
	for r.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(r.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			out <- domain.Fragment{Done: true}
			return
		}
		var delta sseDelta
		if err := json.Unmarshal([]byte(payload), &delta); err != nil {
			continue
		}
		if len(delta.Choices) == 0 {
			continue
		}
		text := delta.Choices[0].Delta.Content
		done := delta.Choices[0].FinishReason != nil
		select {
		case out <- domain.Fragment{Text: text, Done: done}:
		case <-ctx.Done():
			return
		}
		if done {
			return
		}
	}
}

func (p *CloudProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	body, _ := json.Marshal(cloudChatRequest{
		Model: p.model, Messages: []domain.Message{{Role: domain.RoleUser, Content: "ping"}}, MaxTokens: 1,
	})
	req, err := p.newRequest(ctx, body)
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
