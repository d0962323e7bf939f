package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loka-network/loka/internal/api"
	"github.com/loka-network/loka/internal/app/budget"
	"github.com/loka-network/loka/internal/app/credit"
	"github.com/loka-network/loka/internal/app/memory"
	"github.com/loka-network/loka/internal/app/search"
	"github.com/loka-network/loka/internal/classify"
	"github.com/loka-network/loka/internal/delegate"
	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/health"
	"github.com/loka-network/loka/internal/infra/resource"
	"github.com/loka-network/loka/internal/infra/sqlite"
	"github.com/loka-network/loka/internal/mesh/registry"
	"github.com/loka-network/loka/internal/obslog"
	"github.com/loka-network/loka/internal/provider"
	"github.com/loka-network/loka/internal/router"
	"github.com/loka-network/loka/internal/security"
)

// Daemon is the running Loka gateway. It owns every subsystem's lifecycle
// and the HTTP server that fronts them.
type Daemon struct {
	Config Config
	Log    *logrus.Logger

	BudgetStore *sqlite.BudgetStore
	CreditStore *sqlite.CreditStore
	MemoryStore *sqlite.MemoryStore

	Budget   *budget.Ledger
	Credit   *credit.Ledger
	Memory   *memory.Store
	Search   *search.Engine
	Registry *registry.Registry
	Trace    *obslog.Logger
	Health   *health.Checker
	Keypair  *security.Keypair
	Router   *router.Router
	Server   *api.Server

	cancel context.CancelFunc
}

// New loads the on-disk config and builds a fully wired Daemon.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds a Daemon from an explicit configuration, wiring
// storage, providers, the router pipeline, and the HTTP API in dependency
// order.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log := newLogger(cfg.Logging)
	home := lokaHome()

	d := &Daemon{Config: cfg, Log: log}

	// ─── Identity ──────────────────────────────────────────────────────
	kp, err := security.LoadOrCreateKeypair(home)
	if err != nil {
		log.WithError(err).Warn("failed to load node keypair; mesh signing disabled")
	}
	d.Keypair = kp
	if cfg.Node.ID == "" && kp != nil {
		hex := kp.PublicKeyHex()
		if len(hex) > 16 {
			cfg.Node.ID = "node-" + hex[:16]
		}
	}

	// ─── Storage ───────────────────────────────────────────────────────
	budgetStore, err := sqlite.OpenBudgetStore(home)
	if err != nil {
		return nil, fmt.Errorf("open budget store: %w", err)
	}
	d.BudgetStore = budgetStore

	creditStore, err := sqlite.OpenCreditStore(home)
	if err != nil {
		return nil, fmt.Errorf("open credit store: %w", err)
	}
	d.CreditStore = creditStore

	memStore, err := sqlite.OpenMemoryStore(home)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	d.MemoryStore = memStore

	// ─── Trace log ─────────────────────────────────────────────────────
	trace, err := obslog.Open(cfg.Logging.File)
	if err != nil {
		log.WithError(err).Warn("failed to open trace log; per-request traces will not be persisted")
	}
	d.Trace = trace

	// ─── Providers ─────────────────────────────────────────────────────
	localProvider := provider.NewLocalProvider(cfg.Providers.Local.Name, cfg.Providers.Local.Model, cfg.Providers.Local.BaseURL)

	var specialistProvider, cloudProvider domain.Provider

	if cfg.Providers.Specialist != nil {
		specialistProvider = provider.NewLocalProvider(cfg.Providers.Specialist.Name, cfg.Providers.Specialist.Model, cfg.Providers.Specialist.BaseURL)
	}

	// Explicit vendor entries in config take priority...
	for _, c := range cfg.Providers.Cloud {
		key, ok := os.LookupEnv(c.APIKeyEnv)
		if !ok || key == "" {
			log.WithField("vendor", c.Vendor).Debug("cloud provider skipped: API key env var not set")
			continue
		}
		p := provider.NewCloudProvider(provider.CloudConfig{
			Vendor:     c.Vendor,
			Model:      c.Model,
			Endpoint:   c.Endpoint,
			APIKey:     key,
			AuthHeader: c.AuthHeader,
			AuthPrefix: c.AuthPrefix,
		})
		assignCatalogSlot(c.Vendor, p, &specialistProvider, &cloudProvider)
	}

	// ...then the built-in vendor catalog fills any remaining slot purely
	// from whichever provider API keys are present in the environment, so
	// a vendor never needs an explicit config block to be picked up.
	endpoints := make(map[string]string, len(cfg.Providers.Cloud))
	for _, c := range cfg.Providers.Cloud {
		endpoints[c.Vendor] = c.Endpoint
	}
	for _, p := range provider.BuildFromEnvironment(provider.Getenv, endpoints) {
		assignCatalogSlot(p.Name(), p, &specialistProvider, &cloudProvider)
	}

	// ─── Budget and credit ledgers ─────────────────────────────────────
	limits := domain.BudgetLimits{
		DailyCapEUR:   cfg.Budget.DailyCapEUR,
		MonthlyCapEUR: cfg.Budget.MonthlyCapEUR,
		WarnAtPercent: cfg.Budget.WarnAtPercent,
	}
	d.Budget = budget.New(budgetStore, limits, log)
	d.Credit = credit.New(creditStore)

	// ─── Mesh registry ─────────────────────────────────────────────────
	d.Registry = registry.New()
	if kp != nil {
		d.Registry.Upsert(domain.MeshNode{
			ID:     cfg.Node.ID,
			Region: cfg.Node.Region,
			Role:   domain.RoleAlwaysOn,
			State:  domain.NodeOnline,
			Models: []string{cfg.Providers.Local.Model},
		})
	}

	// ─── Memory ────────────────────────────────────────────────────────
	memStoreApp := memory.New(memStore)
	if !cfg.Memory.Enabled {
		memStoreApp = nil
	}

	// ─── Search ────────────────────────────────────────────────────────
	var searchEngine *search.Engine
	if cfg.Search.Enabled {
		searchEngine = buildSearchEngine(cfg.Search, localProvider)
	}

	// ─── Health checks ─────────────────────────────────────────────────
	checks := []health.Check{
		health.PingCheck("budget-store", budgetStore),
		health.PingCheck("credit-store", creditStore),
		health.PingCheck("memory-store", memStore),
		health.ProviderCheck(localProvider),
	}
	if specialistProvider != nil {
		checks = append(checks, health.ProviderCheck(specialistProvider))
	}
	if cloudProvider != nil {
		checks = append(checks, health.ProviderCheck(cloudProvider))
	}
	d.Health = health.NewChecker(checks)

	// ─── Router ────────────────────────────────────────────────────────
	routerCfg := router.Config{
		Thresholds:      classify.Thresholds{Local: cfg.Router.LocalComplexityCeiling, Specialist: cfg.Router.SpecialistComplexityCeiling},
		MaxInputTokens:  cfg.Router.MaxInputTokens,
		FallbackToLocal: cfg.Router.FallbackToLocal,
		PrivacyMode:     cfg.Router.PrivacyMode,
		MemoryEnabled:   cfg.Memory.Enabled,
		MemoryTopK:      cfg.Memory.TopK,
		SearchEnabled:   cfg.Search.Enabled,
	}
	providers := router.Providers{Local: localProvider, Specialist: specialistProvider, Cloud: cloudProvider}
	delegationEngine := delegate.NewEngine(routerCfg.Thresholds)
	d.Router = router.New(routerCfg, providers, nil, d.Budget, memStoreApp, searchEngine, delegationEngine, log, trace)

	// ─── HTTP API ──────────────────────────────────────────────────────
	models := buildModelList(cfg, localProvider, specialistProvider, cloudProvider)
	srv := api.NewServer(d.Router, d.Budget, d.Credit, models, cfg.API.APIKeys, log)
	srv.SetHealthChecker(d.Health)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// buildSearchEngine wires the configured search sources. Sub-query
// expansion and result reranking both reuse the local provider, so search
// augmentation stays zero-cost even when the request it augments is
// ultimately routed to a paid provider.
func buildSearchEngine(cfg SearchConfig, local domain.Provider) *search.Engine {
	var sources []search.Source

	if key, ok := os.LookupEnv(cfg.WebAPIKeyEnv); ok && key != "" {
		sources = append(sources, search.NewWebSource(key, httpSearchFetcher(domain.SearchWeb)))
	}
	if key, ok := os.LookupEnv(cfg.AcademicAPIKeyEnv); ok && key != "" {
		sources = append(sources, search.NewAcademicSource(key, httpSearchFetcher(domain.SearchAcademic)))
	}
	if len(sources) == 0 {
		return nil
	}

	return search.New(search.Config{
		Sources:        sources,
		Expand:         localExpander(local),
		Rerank:         localReranker(local),
		MaxResults:     cfg.MaxResults,
		ScoreThreshold: cfg.ScoreThreshold,
	})
}

// httpSearchFetcher is a placeholder wired per source kind; concrete
// vendor wiring (query string, response shape) is supplied by whichever
// search API the operator's key belongs to and is out of scope here since
// it varies per vendor.
func httpSearchFetcher(kind domain.SearchSourceKind) search.Fetcher {
	return func(ctx context.Context, query string) ([]domain.SearchResult, error) {
		return nil, fmt.Errorf("search: no fetcher configured for %s", kind)
	}
}

func localExpander(local domain.Provider) search.Expander {
	return func(ctx context.Context, query string) ([]string, error) {
		prompt := fmt.Sprintf(`Expand this search query into 2-3 more specific sub-queries. Respond with strict JSON: {"queries": ["...", "..."]}. Query: %s`, query)
		result, err := local.Complete(ctx, []domain.Message{{Role: domain.RoleUser, Content: prompt}}, domain.GenerateOptions{})
		if err != nil {
			return []string{query}, nil
		}
		queries, err := search.ParseExpansion(result.Content)
		if err != nil {
			return []string{query}, nil
		}
		return queries, nil
	}
}

func localReranker(local domain.Provider) search.Reranker {
	return func(ctx context.Context, query string, result domain.SearchResult) (float64, error) {
		prompt := fmt.Sprintf("On a scale of 0-10, how relevant is this result to the query %q? Reply with only the number.\nTitle: %s\nSnippet: %s", query, result.Title, result.Snippet)
		resp, err := local.Complete(ctx, []domain.Message{{Role: domain.RoleUser, Content: prompt}}, domain.GenerateOptions{})
		if err != nil {
			return 0, err
		}
		var score float64
		if _, err := fmt.Sscanf(resp.Content, "%f", &score); err != nil {
			return 0, err
		}
		return score, nil
	}
}

// assignCatalogSlot places a configured vendor provider into the
// specialist or cloud slot according to its catalog tier, without
// overwriting a slot that is already filled.
func assignCatalogSlot(vendor string, p domain.Provider, specialist, cloud *domain.Provider) {
	entry := provider.Lookup(vendor)
	tier := domain.TierCloud
	if entry != nil {
		tier = entry.Tier
	}
	switch tier {
	case domain.TierSpecialist:
		if *specialist == nil {
			*specialist = p
		}
	default:
		if *cloud == nil {
			*cloud = p
		}
	}
}

func buildModelList(cfg Config, local, specialist, cloud domain.Provider) []api.ModelInfo {
	models := []api.ModelInfo{{ID: local.Model(), Tier: string(domain.TierLocal)}}
	if specialist != nil {
		models = append(models, api.ModelInfo{ID: specialist.Model(), Tier: string(domain.TierSpecialist)})
	}
	if cloud != nil {
		costIn, costOut := 0.0, 0.0
		if cp, ok := cloud.(interface {
			CostPer1kInputEUR() float64
			CostPer1kOutputEUR() float64
		}); ok {
			costIn, costOut = cp.CostPer1kInputEUR(), cp.CostPer1kOutputEUR()
		}
		models = append(models, api.ModelInfo{ID: cloud.Model(), Tier: string(domain.TierCloud), CostPer1kInputEUR: costIn, CostPer1kOutputEUR: costOut})
	}
	return models
}

func newLogger(cfg LoggingConfig) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// Serve starts the HTTP server and health-check loop, blocking until the
// context is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)
	if d.Keypair != nil {
		go d.sampleResources(ctx)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long enough for a streamed completion
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	d.Log.Infof("loka serving on http://%s", addr)
	if d.Config.Telemetry.Prometheus {
		d.Log.Infof("metrics: http://%s/metrics", addr)
	}

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// sampleResources polls this machine's thermal and battery sensors and
// keeps the self-node's registry record current, so the mesh scheduler
// scores this node the same way it scores remote ones.
func (d *Daemon) sampleResources(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	sample := func() {
		r := resource.Sample()
		d.Registry.SetResourceState(d.Config.Node.ID, float64(r.CPUTempC), 0, r.BatteryStress, r.OnBattery)
	}
	sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

// Close releases every resource the daemon opened.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Trace != nil {
		_ = d.Trace.Close()
	}
	if d.BudgetStore != nil {
		_ = d.BudgetStore.Close()
	}
	if d.CreditStore != nil {
		_ = d.CreditStore.Close()
	}
	if d.MemoryStore != nil {
		_ = d.MemoryStore.Close()
	}
}
