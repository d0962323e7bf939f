package search

import (
	"context"
	"strings"

	"github.com/loka-network/loka/internal/domain"
)

// Source is one retrieval backend the search engine fans out to.
type Source interface {
	Name() string
	Kind() domain.SearchSourceKind
	IsAvailable() bool
	Fetch(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// Fetcher abstracts the HTTP call a Source makes, so tests can substitute a
// fake without a live network dependency.
type Fetcher func(ctx context.Context, query string) ([]domain.SearchResult, error)

// WebSource is a general-purpose web search backend. Availability is
// driven by API-key presence, checked once at construction time.
type WebSource struct {
	apiKey  string
	fetch   Fetcher
}

// NewWebSource constructs a web source. If apiKey is empty the source is
// marked unavailable and omitted from the engine's active source list.
func NewWebSource(apiKey string, fetch Fetcher) *WebSource {
	return &WebSource{apiKey: apiKey, fetch: fetch}
}

func (s *WebSource) Name() string                      { return "web" }
func (s *WebSource) Kind() domain.SearchSourceKind      { return domain.SearchWeb }
func (s *WebSource) IsAvailable() bool                  { return s.apiKey != "" && s.fetch != nil }
func (s *WebSource) Fetch(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return s.fetch(ctx, query)
}

// AcademicSource searches academic paper indexes. Availability is driven by
// API-key presence (and a configured fetcher) only; the query-topic
// heuristic LooksAcademic is separate and IsAvailable does not consult it.
type AcademicSource struct {
	apiKey string
	fetch  Fetcher
}

// NewAcademicSource constructs an academic source.
func NewAcademicSource(apiKey string, fetch Fetcher) *AcademicSource {
	return &AcademicSource{apiKey: apiKey, fetch: fetch}
}

func (s *AcademicSource) Name() string                 { return "academic" }
func (s *AcademicSource) Kind() domain.SearchSourceKind { return domain.SearchAcademic }
func (s *AcademicSource) IsAvailable() bool             { return s.apiKey != "" && s.fetch != nil }
func (s *AcademicSource) Fetch(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return s.fetch(ctx, query)
}

// LooksAcademic is the query-topic heuristic used to decide whether it is
// worth including the academic source for a given query at all.
func LooksAcademic(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range []string{"paper", "research", "study", "arxiv", "journal", "citation"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
