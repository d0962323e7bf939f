package search

import (
	"context"
	"errors"
	"testing"

	"github.com/loka-network/loka/internal/domain"
)

func fixedFetch(results []domain.SearchResult, err error) Fetcher {
	return func(ctx context.Context, query string) ([]domain.SearchResult, error) {
		return results, err
	}
}

// ─── formatAsContext ────────────────────────────────────────────────────────

func TestFormatAsContext_Empty(t *testing.T) {
	if got := FormatAsContext(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFormatAsContext_ContainsLiteralHeader(t *testing.T) {
	out := FormatAsContext([]domain.SearchResult{{URL: "https://a.test", Title: "A", Snippet: "hi"}})
	if !contains(out, "Web Search Context") {
		t.Errorf("output missing literal header: %q", out)
	}
	if !contains(out, "1.") {
		t.Errorf("output missing numbered entry: %q", out)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

// ─── Dedup ──────────────────────────────────────────────────────────────────

func TestDedupe_NormalizesURLs(t *testing.T) {
	in := []domain.SearchResult{
		{URL: "https://example.com/page/"},
		{URL: "https://example.com/page"},
		{URL: "https://example.com/other"},
	}
	out := dedupe(in)
	if len(out) != 2 {
		t.Errorf("got %d results, want 2", len(out))
	}
}

// ─── Source isolation ───────────────────────────────────────────────────────

func TestEngine_OneSourceFailureDoesNotCancelOthers(t *testing.T) {
	good := NewWebSource("key", fixedFetch([]domain.SearchResult{{URL: "https://good.test"}}, nil))
	bad := NewAcademicSource("key", fixedFetch(nil, errors.New("boom")))

	eng := New(Config{Sources: []Source{good, bad}})
	results, err := eng.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

// ─── Safety fallback ────────────────────────────────────────────────────────

func TestEngine_RerankAllBelowThresholdReturnsOriginal(t *testing.T) {
	src := NewWebSource("key", fixedFetch([]domain.SearchResult{
		{URL: "https://a.test"}, {URL: "https://b.test"},
	}, nil))

	rerankAllLow := func(ctx context.Context, query string, r domain.SearchResult) (float64, error) {
		return 0, nil
	}

	eng := New(Config{Sources: []Source{src}, Rerank: rerankAllLow, ScoreThreshold: 5})
	results, err := eng.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want original 2 preserved", len(results))
	}
}

// ─── Expansion parsing ──────────────────────────────────────────────────────

func TestParseExpansion_StripsMarkdownFence(t *testing.T) {
	queries, err := ParseExpansion("```json\n{\"queries\":[\"a\",\"b\"]}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(queries) != 2 {
		t.Errorf("got %d queries, want 2", len(queries))
	}
}

func TestParseExpansion_MalformedReturnsError(t *testing.T) {
	if _, err := ParseExpansion("not json"); err == nil {
		t.Error("expected error for malformed input")
	}
}
