package domain

import "context"

// GenerateOptions carries per-call sampling parameters through to a Provider.
// Gateway requests leave them unset: internal/api's chatRequest decodes no
// sampling fields, and the router passes the zero value.
type GenerateOptions struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
	Stop        []string
}

// Provider is the capability set every inference backend must implement,
// whether it is the local HTTP engine or a cloud vendor adapter. Providers
// are constructed once at startup and held for the process lifetime; any
// connection pooling they need is internal.
type Provider interface {
	// Name identifies the provider for logs, traces, and /v1/models.
	Name() string

	// Model is the model identifier this provider presents to callers.
	Model() string

	// Complete runs one non-streaming completion.
	Complete(ctx context.Context, messages []Message, opts GenerateOptions) (CompletionResult, error)

	// Stream runs one completion, delivering text fragments as they arrive.
	// The returned channel is closed when generation finishes or ctx is
	// cancelled; cancelling ctx must release any underlying connection.
	Stream(ctx context.Context, messages []Message, opts GenerateOptions) (<-chan Fragment, error)

	// HealthCheck reports whether the provider is currently reachable.
	HealthCheck(ctx context.Context) bool

	// CostPer1kInputEUR and CostPer1kOutputEUR are the provider's published
	// rates. A provider with CostPer1kInputEUR() == 0 must be safe to call
	// with no network egress (the local adapter).
	CostPer1kInputEUR() float64
	CostPer1kOutputEUR() float64
}

// EstimateCost computes the EUR cost of a completion from a provider's
// published rates and token counts, used by the budget pre-check before a
// request executes (the actual cost is not yet known).
func EstimateCost(p Provider, inputTokens, outputTokens int) float64 {
	in := float64(inputTokens) / 1000.0 * p.CostPer1kInputEUR()
	out := float64(outputTokens) / 1000.0 * p.CostPer1kOutputEUR()
	return in + out
}

// IsZeroCost reports whether a provider charges nothing per token. A
// provider slot configured as "cloud" but backed by a zero-cost endpoint
// is treated by the router as a local fallback rather than a paid backend.
func IsZeroCost(p Provider) bool {
	return p.CostPer1kInputEUR() == 0 && p.CostPer1kOutputEUR() == 0
}
