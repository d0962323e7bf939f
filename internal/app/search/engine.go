// Package search implements the expand/retrieve/rerank web-and-academic
// search pipeline used to augment router context for complex queries.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/loka-network/loka/internal/domain"
)

// Expander turns one user query into 2-3 sub-queries using the local
// model. Implementations must return a single-element slice containing
// the original query on any failure to parse a model response.
type Expander func(ctx context.Context, query string) ([]string, error)

// Reranker scores a single search result against the query, 0-10.
type Reranker func(ctx context.Context, query string, result domain.SearchResult) (float64, error)

// Engine runs the expand -> parallel-retrieve -> rerank pipeline.
type Engine struct {
	sources       []Source
	expand        Expander
	rerank        Reranker
	maxResults    int
	scoreThreshold float64
	cache         *gocache.Cache
}

// Config configures an Engine.
type Config struct {
	Sources        []Source
	Expand         Expander
	Rerank         Reranker
	MaxResults     int
	ScoreThreshold float64
}

// New builds an engine from only the sources that report IsAvailable,
// per the gateway's "unavailable sources are omitted at construction time"
// rule. Fetched sub-query results are cached for one minute to avoid
// repeating identical fan-outs within a burst of related requests.
func New(cfg Config) *Engine {
	var active []Source
	for _, s := range cfg.Sources {
		if s.IsAvailable() {
			active = append(active, s)
		}
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Engine{
		sources:        active,
		expand:         cfg.Expand,
		rerank:         cfg.Rerank,
		maxResults:     maxResults,
		scoreThreshold: cfg.ScoreThreshold,
		cache:          gocache.New(1*time.Minute, 2*time.Minute),
	}
}

// Search runs the full pipeline for one query.
func (e *Engine) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	subQueries := e.expandQuery(ctx, query)

	results := e.fetchAll(ctx, subQueries)
	deduped := dedupe(results)

	return e.rerankResults(ctx, query, deduped), nil
}

func (e *Engine) expandQuery(ctx context.Context, query string) []string {
	if e.expand == nil {
		return []string{query}
	}
	subQueries, err := e.expand(ctx, query)
	if err != nil || len(subQueries) == 0 {
		return []string{query}
	}
	return subQueries
}

// fetchAll fans out source x sub-query pairs concurrently. One failing
// fetch is isolated and simply contributes no results; it never cancels
// the others.
func (e *Engine) fetchAll(ctx context.Context, subQueries []string) []domain.SearchResult {
	type job struct {
		source Source
		query  string
	}
	var jobs []job
	for _, src := range e.sources {
		for _, q := range subQueries {
			jobs = append(jobs, job{source: src, query: q})
		}
	}

	resultsCh := make(chan []domain.SearchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			cacheKey := j.source.Name() + "|" + j.query
			if cached, ok := e.cache.Get(cacheKey); ok {
				resultsCh <- cached.([]domain.SearchResult)
				return nil
			}
			res, err := j.source.Fetch(gctx, j.query)
			if err != nil {
				return nil // isolate: one source's failure never cancels another
			}
			e.cache.Set(cacheKey, res, gocache.DefaultExpiration)
			resultsCh <- res
			return nil
		})
	}
	g.Wait()
	close(resultsCh)

	var all []domain.SearchResult
	for r := range resultsCh {
		all = append(all, r...)
	}
	return all
}

func dedupe(results []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		key := strings.ToLower(domain.NormalizeURL(r.URL))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// rerankResults scores each result and drops those below threshold. If
// every result drops, the original list is returned unmodified as a
// safety fallback so a bad reranker never zeroes out search entirely.
func (e *Engine) rerankResults(ctx context.Context, query string, results []domain.SearchResult) []domain.SearchResult {
	if e.rerank == nil || len(results) == 0 {
		return capResults(results, e.maxResults)
	}

	scored := make([]domain.SearchResult, len(results))
	copy(scored, results)
	for i := range scored {
		score, err := e.rerank(ctx, query, scored[i])
		if err != nil {
			score = 0
		}
		scored[i].Score = score
	}

	var kept []domain.SearchResult
	for _, r := range scored {
		if r.Score >= e.scoreThreshold {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return capResults(results, e.maxResults)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return capResults(kept, e.maxResults)
}

func capResults(results []domain.SearchResult, max int) []domain.SearchResult {
	if len(results) > max {
		return results[:max]
	}
	return results
}

// FormatAsContext renders results as a synthetic context block for the
// provider prompt. Empty input yields an empty string.
func FormatAsContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Web Search Context:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// expandJSONSchema is the strict shape the expansion prompt must produce.
type expandJSONSchema struct {
	Queries []string `json:"queries"`
}

// ParseExpansion parses a strict-JSON planner response into sub-queries,
// tolerating a leading/trailing markdown fence the way the delegation
// engine's planner parser does.
func ParseExpansion(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed expandJSONSchema
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("search: parse expansion: %w", err)
	}
	if len(parsed.Queries) == 0 {
		return nil, fmt.Errorf("search: expansion returned no queries")
	}
	return parsed.Queries, nil
}
