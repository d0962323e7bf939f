package classify

import (
	"strings"
	"testing"

	"github.com/loka-network/loka/internal/domain"
)

// ─── Totality ───────────────────────────────────────────────────────────────

func TestScore_TotalOnStrings(t *testing.T) {
	inputs := []string{
		"",
		"????!!!...",
		strings.Repeat("a very long sentence about nothing in particular. ", 500),
	}
	for _, in := range inputs {
		s := Score(in)
		if s < 0 || s > 1 {
			t.Errorf("Score(%q) = %v, want in [0, 1]", in, s)
		}
	}
}

// ─── Tier boundaries ────────────────────────────────────────────────────────

func TestTier_Boundaries(t *testing.T) {
	th := DefaultThresholds()
	if got := Tier(0.0, th); got != domain.TierLocal {
		t.Errorf("Tier(0.0) = %v, want local", got)
	}
	if got := Tier(0.34, th); got != domain.TierLocal {
		t.Errorf("Tier(0.34) = %v, want local", got)
	}
	if got := Tier(0.35, th); got != domain.TierSpecialist {
		t.Errorf("Tier(0.35) = %v, want specialist", got)
	}
	if got := Tier(0.64, th); got != domain.TierSpecialist {
		t.Errorf("Tier(0.64) = %v, want specialist", got)
	}
	if got := Tier(0.65, th); got != domain.TierCloud {
		t.Errorf("Tier(0.65) = %v, want cloud", got)
	}
	if got := Tier(1.0, th); got != domain.TierCloud {
		t.Errorf("Tier(1.0) = %v, want cloud", got)
	}
}

// ─── End-to-end scenarios ───────────────────────────────────────────────────

func TestScore_SimpleArithmetic(t *testing.T) {
	score, tier := Classify("What is 2 + 2?", DefaultThresholds())
	if score >= 0.35 {
		t.Errorf("score = %v, want < 0.35", score)
	}
	if tier != domain.TierLocal {
		t.Errorf("tier = %v, want local", tier)
	}
}

func TestScore_HighComplexityPrompt(t *testing.T) {
	text := "Please compare and analyse the trade-off between a monolith and a " +
		"distributed architecture. Consider latency, cost, and operability. " +
		"Here is a snippet:\n```go\nfunc main() {}\n```"
	score, tier := Classify(text, DefaultThresholds())
	if score <= 0.65 {
		t.Errorf("score = %v, want > 0.65", score)
	}
	if tier != domain.TierCloud {
		t.Errorf("tier = %v, want cloud", tier)
	}
}

func TestReason_MatchesTier(t *testing.T) {
	cases := map[domain.RoutingTier]domain.RoutingReason{
		domain.TierLocal:      domain.ReasonLowComplexity,
		domain.TierSpecialist: domain.ReasonMediumComplexity,
		domain.TierCloud:      domain.ReasonHighComplexity,
	}
	for tier, want := range cases {
		if got := Reason(tier); got != want {
			t.Errorf("Reason(%v) = %v, want %v", tier, got, want)
		}
	}
}
