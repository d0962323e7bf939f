package domain

// RoutingTier names where a request executed.
type RoutingTier string

const (
	TierLocal      RoutingTier = "local"
	TierSpecialist RoutingTier = "specialist"
	TierCloud      RoutingTier = "cloud"
	TierDelegated  RoutingTier = "delegated"
)

// RoutingReason explains why the Router picked a given tier.
type RoutingReason string

const (
	ReasonPIIDetected        RoutingReason = "pii_detected"
	ReasonTokenLimit         RoutingReason = "token_limit"
	ReasonLowComplexity      RoutingReason = "low_complexity"
	ReasonMediumComplexity   RoutingReason = "medium_complexity"
	ReasonHighComplexity     RoutingReason = "high_complexity"
	ReasonBudgetExceeded     RoutingReason = "budget_exceeded"
	ReasonProviderUnavailable RoutingReason = "provider_unavailable"
	ReasonSearchAugmented    RoutingReason = "search_augmented"
)

// CompletionResult is what a Provider returns for one completion call.
// Token counts may be provider-estimated rather than exact.
type CompletionResult struct {
	Content          string
	Model            string
	InputTokens      int
	OutputTokens     int
	CostEUR          float64
	LatencyMs        int64
}

// RoutingDecision is immutable once constructed: it records the whole
// outcome of one trip through the Router pipeline.
type RoutingDecision struct {
	Tier       RoutingTier
	Model      string
	Reason     RoutingReason
	Complexity float64
	Response   CompletionResult
	Trace      []string
}

// Fragment is one piece of a streamed completion.
type Fragment struct {
	Text string
	Done bool
}

// Token counts produced by the classifier/budget pre-check's rough
// estimator: round(word_count * 1.3), per spec.
func EstimateTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			words++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return int(float64(words)*1.3 + 0.5)
}
