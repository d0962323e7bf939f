// Package router implements the gateway's request pipeline: memory recall,
// PII scanning, token gating, search augmentation, complexity
// classification, provider selection, budget enforcement, execution with
// local fallback, and post-hoc cost recording.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loka-network/loka/internal/app/budget"
	"github.com/loka-network/loka/internal/app/memory"
	"github.com/loka-network/loka/internal/app/search"
	"github.com/loka-network/loka/internal/classify"
	"github.com/loka-network/loka/internal/delegate"
	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/metrics"
	"github.com/loka-network/loka/internal/obslog"
	"github.com/loka-network/loka/internal/pii"
)

// Providers holds the three provider slots the router chooses between.
// Specialist and Cloud may be nil when unconfigured.
type Providers struct {
	Local      domain.Provider
	Specialist domain.Provider
	Cloud      domain.Provider
}

// Config controls router-level policy independent of any one request.
type Config struct {
	Thresholds        classify.Thresholds
	MaxInputTokens    int
	FallbackToLocal   bool
	PrivacyMode       bool // when true, PII detection blocks the request rather than just tagging it
	MemoryEnabled     bool
	MemoryTopK        int
	SearchEnabled     bool
}

// DefaultConfig matches the documented out-of-the-box policy.
func DefaultConfig() Config {
	return Config{
		Thresholds:     classify.DefaultThresholds(),
		MaxInputTokens: 8000,
		FallbackToLocal: true,
		MemoryTopK:     3,
	}
}

// Router ties every gateway subsystem into the single request pipeline.
type Router struct {
	cfg        Config
	providers  Providers
	nameProbe  pii.NameProbe
	budget     *budget.Ledger
	memory     *memory.Store
	retriever  *memory.Retriever
	search     *search.Engine
	delegation *delegate.Engine
	log        *logrus.Logger
	trace      *obslog.Logger
}

// New builds a Router. memStore, searchEngine, delegation, and trace may be
// nil when their respective features are disabled.
func New(cfg Config, providers Providers, nameProbe pii.NameProbe, ledger *budget.Ledger, memStore *memory.Store, searchEngine *search.Engine, delegation *delegate.Engine, log *logrus.Logger, trace *obslog.Logger) *Router {
	r := &Router{
		cfg:        cfg,
		providers:  providers,
		nameProbe:  nameProbe,
		budget:     ledger,
		memory:     memStore,
		search:     searchEngine,
		delegation: delegation,
		log:        log,
		trace:      trace,
	}
	if memStore != nil {
		r.retriever = memory.NewRetriever(memStore)
	}
	return r
}

// Request is one chat-completion call into the router.
type Request struct {
	SessionID   string
	Messages    []domain.Message
	Interactive bool
	Stream      bool
}

// plan is the result of pipeline steps 1-7, shared by Route and RouteStream.
type plan struct {
	messages []domain.Message
	provider domain.Provider
	tier     domain.RoutingTier
	reason   domain.RoutingReason
	score    float64
}

// prepare runs steps 1 through 7 of the pipeline: memory recall, PII scan,
// token gate, search augmentation, classification, provider selection, and
// the budget pre-check. A non-nil error here means the request must be
// rejected outright (PII block, token limit, no provider, budget with no
// fallback); the caller should return the paired RoutingDecision verbatim.
// With dryRun set, the budget pre-check compares the estimate against the
// caps without writing a record.
func (r *Router) prepare(ctx context.Context, req Request, t *obslog.Trace, dryRun bool) (plan, domain.RoutingDecision, error) {
	messages := req.Messages

	// Step 1: recall memory
	if r.cfg.MemoryEnabled && r.retriever != nil && req.SessionID != "" {
		query := domain.ConcatContent(messages)
		recalled, err := r.retriever.Retrieve(req.SessionID, query, r.cfg.MemoryTopK)
		if err != nil {
			t.Step("memory: retrieve failed, continuing without history")
		} else if recalled != "" {
			messages = prependSystem(messages, recalled)
			t.Step("memory: recalled relevant history")
		} else {
			t.Step("memory: nothing relevant")
		}
	}

	fullText := domain.ConcatContent(messages)

	// Step 2: PII scan. Default action is force-local: short-circuit to the
	// local provider with reason pii_detected and score 0, skipping
	// classification entirely. PrivacyMode opts into the stricter action of
	// blocking the request outright instead.
	scan := pii.Scan(fullText, r.nameProbe)
	if scan.Detected {
		t.Step(fmt.Sprintf("pii: detected %d type(s)", len(scan.Types)))
		if r.cfg.PrivacyMode {
			metrics.PIIBlocked.Inc()
			types := make([]string, 0, len(scan.Types))
			for ty := range scan.Types {
				types = append(types, string(ty))
			}
			return plan{}, domain.RoutingDecision{Reason: domain.ReasonPIIDetected, Trace: t.Lines()}, &domain.PIIBlockedError{Types: types}
		}
		if r.providers.Local == nil {
			t.Step("provider: none available")
			return plan{}, domain.RoutingDecision{Reason: domain.ReasonProviderUnavailable, Trace: t.Lines()}, domain.ErrProviderUnavailable
		}
		t.Step("pii: forcing local tier")
		return plan{messages: messages, provider: r.providers.Local, tier: domain.TierLocal, reason: domain.ReasonPIIDetected, score: 0}, domain.RoutingDecision{}, nil
	}
	t.Step("pii: clean")

	// Step 3: token gate
	inputTokens := domain.EstimateTokens(fullText)
	if r.cfg.MaxInputTokens > 0 && inputTokens > r.cfg.MaxInputTokens {
		t.Step(fmt.Sprintf("tokens: %d exceeds limit %d", inputTokens, r.cfg.MaxInputTokens))
		return plan{}, domain.RoutingDecision{Reason: domain.ReasonTokenLimit, Trace: t.Lines()}, domain.ErrTokenLimitExceeded
	}
	t.Step(fmt.Sprintf("tokens: %d", inputTokens))

	// Step 4: search augmentation
	if r.cfg.SearchEnabled && r.search != nil {
		lastUser := lastUserMessage(messages)
		if lastUser != "" {
			results, err := r.search.Search(ctx, lastUser)
			if err != nil {
				t.Step("search: failed, continuing without context")
			} else if ctxBlock := search.FormatAsContext(results); ctxBlock != "" {
				messages = prependSystem(messages, ctxBlock)
				t.Step(fmt.Sprintf("search: added %d result(s)", len(results)))
			} else {
				t.Step("search: no results")
			}
		}
	}

	// Step 5: classify
	score, tier := classify.Classify(fullText, r.cfg.Thresholds)
	reason := classify.Reason(tier)
	metrics.ComplexityScore.Observe(score)
	t.Step(fmt.Sprintf("classify: score=%.2f tier=%s", score, tier))

	// Step 6: select provider, with the zero-cost-cloud-is-local special case
	provider, tier := r.selectProvider(tier)
	if provider == nil {
		t.Step("provider: none available")
		return plan{}, domain.RoutingDecision{Reason: domain.ReasonProviderUnavailable, Complexity: score, Trace: t.Lines()}, domain.ErrProviderUnavailable
	}
	t.Step(fmt.Sprintf("provider: %s (%s)", provider.Name(), tier))

	// Step 7: budget pre-check, cloud/specialist only
	if r.budget != nil && tier != domain.TierLocal && !domain.IsZeroCost(provider) {
		estOut := inputTokens // rough symmetric estimate pending a real response
		estCost := domain.EstimateCost(provider, inputTokens, estOut)
		rec := domain.BudgetCostRecord{Model: provider.Model(), InputTokens: inputTokens, OutputTokens: estOut, CostEUR: estCost, Tier: tier}
		var budgetErr error
		if !dryRun {
			budgetErr = r.budget.CheckAndRecord(rec)
		} else if s, serr := r.budget.Summary(); serr == nil {
			lim := r.budget.Limits()
			if (lim.DailyCapEUR > 0 && s.TodayEUR+estCost > lim.DailyCapEUR) || (lim.MonthlyCapEUR > 0 && s.MonthEUR+estCost > lim.MonthlyCapEUR) {
				budgetErr = domain.ErrBudgetExceeded
			}
		}
		if budgetErr != nil {
			t.Step("budget: cap exceeded")
			if r.cfg.FallbackToLocal && r.providers.Local != nil {
				t.Step("budget: falling back to local")
				provider = r.providers.Local
				tier = domain.TierLocal
				reason = domain.ReasonBudgetExceeded
			} else {
				return plan{}, domain.RoutingDecision{Reason: domain.ReasonBudgetExceeded, Complexity: score, Trace: t.Lines()}, domain.ErrBudgetExceeded
			}
		}
	}

	return plan{messages: messages, provider: provider, tier: tier, reason: reason, score: score}, domain.RoutingDecision{}, nil
}

// Route runs the full pipeline for one request and returns the outcome.
// Memory and search failures are traced and skipped; a rejection or a
// failed execution returns a RoutingDecision carrying the reason together
// with the error.
func (r *Router) Route(ctx context.Context, req Request) (domain.RoutingDecision, error) {
	t := obslog.NewTrace(requestID(req))
	defer r.flushTrace(t)
	start := time.Now()

	p, rejected, err := r.prepare(ctx, req, t, false)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(string(p.tier), "rejected").Inc()
		return rejected, err
	}
	messages, provider, tier, reason, score := p.messages, p.provider, p.tier, p.reason, p.score

	// Step 8: execute
	result, execErr := r.execute(ctx, provider, tier, messages, req, t)
	if execErr != nil {
		if r.cfg.FallbackToLocal && tier != domain.TierLocal && r.providers.Local != nil {
			t.Step("execute: provider failed, falling back to local")
			tier = domain.TierLocal
			result, execErr = r.execute(ctx, r.providers.Local, tier, messages, req, t)
		}
		if execErr != nil {
			t.Step("execute: failed")
			metrics.RequestsTotal.WithLabelValues(string(tier), "error").Inc()
			return domain.RoutingDecision{Reason: domain.ReasonProviderUnavailable, Complexity: score, Trace: t.Lines()}, execErr
		}
	}
	metrics.RequestsTotal.WithLabelValues(string(tier), "ok").Inc()
	metrics.RequestLatency.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())

	// Step 9: post-record
	r.postRecord(req, tier, result)

	return domain.RoutingDecision{
		Tier:       tier,
		Model:      result.Model,
		Reason:     reason,
		Complexity: score,
		Response:   result,
		Trace:      t.Lines(),
	}, nil
}

// Explain runs the pipeline through provider selection (steps 1-7) only —
// no completion is executed, no budget record is written, and nothing is
// appended to memory. The reported cost is an estimate from the provider's
// rates and the input token count, exactly like the budget pre-check's own
// estimate, not an amount actually spent.
func (r *Router) Explain(ctx context.Context, req Request) (domain.RoutingDecision, error) {
	t := obslog.NewTrace(requestID(req))
	defer r.flushTrace(t)

	p, rejected, err := r.prepare(ctx, req, t, true)
	if err != nil {
		return rejected, err
	}

	inputTokens := domain.EstimateTokens(domain.ConcatContent(p.messages))
	estCost := domain.EstimateCost(p.provider, inputTokens, inputTokens)

	return domain.RoutingDecision{
		Tier:       p.tier,
		Model:      p.provider.Model(),
		Reason:     p.reason,
		Complexity: p.score,
		Response:   domain.CompletionResult{Model: p.provider.Model(), CostEUR: estCost},
		Trace:      t.Lines(),
	}, nil
}

// StreamResult carries the RoutingDecision metadata alongside the fragment
// channel, since the tier and model are not known to the caller until
// after provider selection completes.
type StreamResult struct {
	Decision domain.RoutingDecision
	Fragments <-chan domain.Fragment
}

// RouteStream runs the same pipeline as Route through provider selection,
// then streams the completion rather than waiting for it in full. The
// specialist tier has no meaningful token-by-token stream (its answer is
// assembled from subtasks), so it is delivered as a single fragment.
// Memory and budget post-recording happen once the stream drains, inside
// the goroutine that relays fragments to the caller.
func (r *Router) RouteStream(ctx context.Context, req Request) (StreamResult, error) {
	t := obslog.NewTrace(requestID(req))
	start := time.Now()

	p, rejected, err := r.prepare(ctx, req, t, false)
	if err != nil {
		r.flushTrace(t)
		metrics.RequestsTotal.WithLabelValues(string(p.tier), "rejected").Inc()
		return StreamResult{Decision: rejected}, err
	}
	messages, provider, tier, reason, score := p.messages, p.provider, p.tier, p.reason, p.score

	if tier == domain.TierSpecialist && r.delegation != nil {
		result, err := r.execute(ctx, provider, tier, messages, req, t)
		if err != nil {
			r.flushTrace(t)
			metrics.RequestsTotal.WithLabelValues(string(tier), "error").Inc()
			return StreamResult{}, err
		}
		out := make(chan domain.Fragment, 1)
		out <- domain.Fragment{Text: result.Content, Done: true}
		close(out)
		r.postRecord(req, tier, result)
		r.flushTrace(t)
		metrics.RequestsTotal.WithLabelValues(string(tier), "ok").Inc()
		metrics.RequestLatency.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())
		return StreamResult{
			Decision: domain.RoutingDecision{Tier: tier, Model: result.Model, Reason: reason, Complexity: score, Response: result, Trace: t.Lines()},
			Fragments: out,
		}, nil
	}

	frags, err := provider.Stream(ctx, messages, domain.GenerateOptions{})
	if err != nil {
		if r.cfg.FallbackToLocal && tier != domain.TierLocal && r.providers.Local != nil {
			t.Step("stream: provider failed, falling back to local")
			tier = domain.TierLocal
			provider = r.providers.Local
			frags, err = provider.Stream(ctx, messages, domain.GenerateOptions{})
		}
		if err != nil {
			r.flushTrace(t)
			metrics.RequestsTotal.WithLabelValues(string(tier), "error").Inc()
			return StreamResult{}, err
		}
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer r.flushTrace(t)
		var content strings.Builder
		for frag := range frags {
			content.WriteString(frag.Text)
			out <- frag
		}
		result := domain.CompletionResult{Content: content.String(), Model: provider.Model()}
		r.postRecord(req, tier, result)
		metrics.RequestsTotal.WithLabelValues(string(tier), "ok").Inc()
		metrics.RequestLatency.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())
	}()

	return StreamResult{
		Decision:  domain.RoutingDecision{Tier: tier, Model: provider.Model(), Reason: reason, Complexity: score, Trace: t.Lines()},
		Fragments: out,
	}, nil
}

// postRecord performs step 9 (budget post-record and memory write), shared
// by Route and RouteStream.
func (r *Router) postRecord(req Request, tier domain.RoutingTier, result domain.CompletionResult) {
	if r.budget != nil && tier == domain.TierLocal {
		r.budget.Record(domain.BudgetCostRecord{Model: result.Model, InputTokens: result.InputTokens, OutputTokens: result.OutputTokens, CostEUR: 0, Tier: tier})
	}
	if r.cfg.MemoryEnabled && r.memory != nil && req.SessionID != "" {
		if userMsg := lastUserMessage(req.Messages); userMsg != "" {
			r.memory.Add(req.SessionID, domain.RoleUser, userMsg, nil)
		}
		r.memory.Add(req.SessionID, domain.RoleAssistant, result.Content, nil)
	}
}

func (r *Router) execute(ctx context.Context, provider domain.Provider, tier domain.RoutingTier, messages []domain.Message, req Request, t *obslog.Trace) (domain.CompletionResult, error) {
	if tier == domain.TierSpecialist && r.delegation != nil {
		var localPool []domain.Provider
		if r.providers.Local != nil {
			localPool = []domain.Provider{r.providers.Local}
		}
		return r.delegation.Run(ctx, provider, localPool, messages)
	}
	start := time.Now()
	result, err := provider.Complete(ctx, messages, domain.GenerateOptions{})
	if err != nil {
		return domain.CompletionResult{}, err
	}
	result.LatencyMs = time.Since(start).Milliseconds()
	return result, nil
}

// selectProvider maps a classified tier to a configured provider, applying
// the zero-cost special case: a "cloud" slot backed by a free endpoint is
// reported and treated as local.
func (r *Router) selectProvider(tier domain.RoutingTier) (domain.Provider, domain.RoutingTier) {
	switch tier {
	case domain.TierCloud:
		if r.providers.Cloud != nil {
			if domain.IsZeroCost(r.providers.Cloud) {
				// A zero-cost cloud slot means no real paid backend was
				// configured at startup. If a paid specialist is available,
				// high-complexity work must not silently downgrade to an
				// on-device model when one is — retarget to specialist.
				if r.providers.Specialist != nil {
					return r.providers.Specialist, domain.TierSpecialist
				}
				return r.providers.Cloud, domain.TierLocal
			}
			return r.providers.Cloud, domain.TierCloud
		}
		fallthrough
	case domain.TierSpecialist:
		if r.providers.Specialist != nil {
			return r.providers.Specialist, domain.TierSpecialist
		}
		fallthrough
	default:
		return r.providers.Local, domain.TierLocal
	}
}

func (r *Router) flushTrace(t *obslog.Trace) {
	if r.trace != nil {
		r.trace.Write(t)
	}
}

func requestID(req Request) string {
	if req.SessionID != "" {
		return req.SessionID
	}
	return "anon"
}

func prependSystem(messages []domain.Message, content string) []domain.Message {
	out := make([]domain.Message, 0, len(messages)+1)
	out = append(out, domain.Message{Role: domain.RoleSystem, Content: content})
	out = append(out, messages...)
	return out
}

func lastUserMessage(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
