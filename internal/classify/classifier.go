// Package classify scores a conversation's complexity and maps the score to
// a routing tier. It is a pure function of text: no network or disk access.
package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/loka-network/loka/internal/domain"
)

// Thresholds configures the tier boundaries. Zero value is invalid; use
// DefaultThresholds.
type Thresholds struct {
	Local      float64 // score below this → local
	Specialist float64 // score below this (and >= Local) → specialist; else cloud
}

// DefaultThresholds matches the gateway's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Local: 0.35, Specialist: 0.65}
}

var (
	reasoningTerms = []string{
		"how", "why", "compare", "analyse", "analyze", "vs", "explain",
		"evaluate", "trade-off", "tradeoff", "architecture", "distributed",
		"performance",
	}
	connectiveTerms = []string{
		"because", "therefore", "however", "implication", "rationale",
		"consequently", "furthermore", "whereas",
	}
	chainOfThoughtMarkers = []string{
		"step by step", "first,", "second,", "third,", "in conclusion",
		"firstly", "secondly", "thirdly",
	}

	codeBlockPattern  = regexp.MustCompile("```")
	inlineCodePattern = regexp.MustCompile("`[^`\n]+`")
	stackTracePattern = regexp.MustCompile(`(?i)\bat\s+[\w.]+\(.*:\d+\)|traceback \(most recent call last\)`)
	dottedPathPattern = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*){2,}\b`)
	filePathPattern   = regexp.MustCompile(`(?:/[\w.-]+){2,}|[A-Za-z]:\\[\w\\.-]+`)
	errorKeywordPattern = regexp.MustCompile(`(?i)\b(exception|error|panic|stack trace|segfault|nullpointer)\b`)

	sentenceSplitPattern = regexp.MustCompile(`[.!?]+(\s|$)`)
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func countOccurrences(text string, terms []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, t := range terms {
		count += strings.Count(lower, t)
	}
	return count
}

func sentenceCount(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	matches := sentenceSplitPattern.FindAllString(trimmed, -1)
	n := len(matches)
	if n == 0 {
		return 1
	}
	return n
}

// Score computes the six weighted signals and returns their clamped
// weighted sum in [0, 1].
func Score(text string) float64 {
	tokens := domain.EstimateTokens(text)
	tokenSignal := clamp01(math.Log(float64(tokens)+1) / math.Log(8001))

	questionSignal := clamp01(float64(countOccurrences(text, reasoningTerms)) / 4)

	technicalMatches := len(codeBlockPattern.FindAllString(text, -1)) +
		len(inlineCodePattern.FindAllString(text, -1)) +
		len(stackTracePattern.FindAllString(text, -1)) +
		len(dottedPathPattern.FindAllString(text, -1)) +
		len(filePathPattern.FindAllString(text, -1)) +
		len(errorKeywordPattern.FindAllString(text, -1))
	technicalSignal := clamp01(float64(technicalMatches) / 5)

	reasoningSignal := clamp01(float64(countOccurrences(text, connectiveTerms)) / 4)

	cotSignal := clamp01(float64(countOccurrences(text, chainOfThoughtMarkers)) / 2)

	lengthSignal := clamp01(math.Max(0, float64(sentenceCount(text)-1)) / 10)

	weighted := 0.15*tokenSignal +
		0.25*questionSignal +
		0.20*technicalSignal +
		0.20*reasoningSignal +
		0.10*cotSignal +
		0.10*lengthSignal

	return clamp01(weighted)
}

// Tier maps a score to a routing tier using the given thresholds.
func Tier(score float64, t Thresholds) domain.RoutingTier {
	switch {
	case score < t.Local:
		return domain.TierLocal
	case score < t.Specialist:
		return domain.TierSpecialist
	default:
		return domain.TierCloud
	}
}

// Reason maps a tier to the RoutingReason used when no other reason (PII,
// token limit) preempted classification.
func Reason(tier domain.RoutingTier) domain.RoutingReason {
	switch tier {
	case domain.TierLocal:
		return domain.ReasonLowComplexity
	case domain.TierSpecialist:
		return domain.ReasonMediumComplexity
	default:
		return domain.ReasonHighComplexity
	}
}

// Classify scores text and returns both the score and resulting tier.
func Classify(text string, t Thresholds) (float64, domain.RoutingTier) {
	score := Score(text)
	return score, Tier(score, t)
}
