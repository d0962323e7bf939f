// Package provider implements the inference backends the router chooses
// between: a zero-cost local HTTP engine and a set of paid cloud vendors.
package provider

import "github.com/loka-network/loka/internal/domain"

// VendorEntry describes one cloud vendor's default model and published
// per-1k-token rates, used to populate /v1/models and to compute estimated
// cost before a request executes.
type VendorEntry struct {
	Vendor            string
	DefaultModel      string
	CostPer1kInputEUR  float64
	CostPer1kOutputEUR float64
	EnvKey            string // environment variable name holding the API key
	Tier              domain.RoutingTier
}

// Catalog is the built-in list of known cloud vendors. A vendor is only
// wired into a live Provider if its EnvKey is set at startup; otherwise it
// is silently omitted from the pool per the gateway's "missing key at
// startup" rule.
var Catalog = []VendorEntry{
	{Vendor: "anthropic", DefaultModel: "claude-sonnet-4", CostPer1kInputEUR: 0.0027, CostPer1kOutputEUR: 0.0135, EnvKey: "ANTHROPIC_API_KEY", Tier: domain.TierCloud},
	{Vendor: "openai", DefaultModel: "gpt-4o", CostPer1kInputEUR: 0.0023, CostPer1kOutputEUR: 0.0092, EnvKey: "OPENAI_API_KEY", Tier: domain.TierCloud},
	{Vendor: "gemini", DefaultModel: "gemini-1.5-pro", CostPer1kInputEUR: 0.0011, CostPer1kOutputEUR: 0.0046, EnvKey: "GEMINI_API_KEY", Tier: domain.TierCloud},
	{Vendor: "groq", DefaultModel: "llama-3.1-70b-versatile", CostPer1kInputEUR: 0.0005, CostPer1kOutputEUR: 0.0007, EnvKey: "GROQ_API_KEY", Tier: domain.TierSpecialist},
	{Vendor: "mistral", DefaultModel: "mistral-large-latest", CostPer1kInputEUR: 0.0018, CostPer1kOutputEUR: 0.0054, EnvKey: "MISTRAL_API_KEY", Tier: domain.TierSpecialist},
	{Vendor: "together", DefaultModel: "meta-llama/Llama-3.1-70B-Instruct-Turbo", CostPer1kInputEUR: 0.0008, CostPer1kOutputEUR: 0.0008, EnvKey: "TOGETHER_API_KEY", Tier: domain.TierSpecialist},
	{Vendor: "perplexity", DefaultModel: "llama-3.1-sonar-large-128k-online", CostPer1kInputEUR: 0.0009, CostPer1kOutputEUR: 0.0009, EnvKey: "PERPLEXITY_API_KEY", Tier: domain.TierSpecialist},
	{Vendor: "cohere", DefaultModel: "command-r-plus", CostPer1kInputEUR: 0.0024, CostPer1kOutputEUR: 0.0115, EnvKey: "COHERE_API_KEY", Tier: domain.TierSpecialist},
	{Vendor: "azure", DefaultModel: "gpt-4o", CostPer1kInputEUR: 0.0023, CostPer1kOutputEUR: 0.0092, EnvKey: "AZURE_OPENAI_API_KEY", Tier: domain.TierCloud},
}

// Lookup finds a catalog entry by vendor name. Returns nil if unknown.
func Lookup(vendor string) *VendorEntry {
	for i := range Catalog {
		if Catalog[i].Vendor == vendor {
			return &Catalog[i]
		}
	}
	return nil
}
