package provider

import "testing"

func TestLookup_KnownVendor(t *testing.T) {
	entry := Lookup("anthropic")
	if entry == nil {
		t.Fatal("expected anthropic entry")
	}
	if entry.EnvKey != "ANTHROPIC_API_KEY" {
		t.Errorf("env key = %q, want ANTHROPIC_API_KEY", entry.EnvKey)
	}
}

func TestLookup_UnknownVendor(t *testing.T) {
	if Lookup("does-not-exist") != nil {
		t.Error("expected nil for unknown vendor")
	}
}

func TestBuildFromEnvironment_OmitsMissingKeys(t *testing.T) {
	env := map[string]string{"ANTHROPIC_API_KEY": "sk-test"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	providers := BuildFromEnvironment(lookup, nil)
	if len(providers) != 1 {
		t.Fatalf("got %d providers, want 1", len(providers))
	}
	if providers[0].Name() != "anthropic" {
		t.Errorf("provider = %q, want anthropic", providers[0].Name())
	}
}
