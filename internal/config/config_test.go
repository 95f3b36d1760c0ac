package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{APIKey: "test-key"},
		Store:     StoreConfig{Endpoint: "https://in01.example.zillizcloud.com:19530", Token: "t"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingEmbeddingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_MissingStoreEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Endpoint = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing store endpoint")
	}
}

func TestValidate_MissingStoreAuth(t *testing.T) {
	cfg := validConfig()
	cfg.Store = StoreConfig{Endpoint: "https://example.com:19530"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing store auth")
	}
}

func TestStoreConfig_HasCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  StoreConfig
		want bool
	}{
		{"token", StoreConfig{Token: "t"}, true},
		{"api key", StoreConfig{APIKey: "k"}, true},
		{"basic", StoreConfig{Username: "u", Password: "p"}, true},
		{"username only", StoreConfig{Username: "u"}, false},
		{"password only", StoreConfig{Password: "p"}, false},
		{"none", StoreConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.HasCredentials(); got != tt.want {
				t.Errorf("HasCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "")
	t.Setenv("DASHSCOPE_API_KEY", "")

	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Embedding.BaseURL != "https://dashscope.aliyuncs.com/compatible-mode/v1" {
		t.Errorf("unexpected default base url %q", cfg.Embedding.BaseURL)
	}
	if cfg.Embedding.Model != "text-embedding-v3" {
		t.Errorf("unexpected default model %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.ProbeText == "" {
		t.Error("expected non-empty probe text")
	}
	if cfg.Collection.Name != "knowledge_base" {
		t.Errorf("unexpected default collection %q", cfg.Collection.Name)
	}
}

func TestApplyDefaults_KeyFallbackOrder(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "qwen-key")
	t.Setenv("DASHSCOPE_API_KEY", "dashscope-key")

	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Embedding.APIKey != "qwen-key" {
		t.Errorf("expected QWEN_API_KEY to win, got %q", cfg.Embedding.APIKey)
	}

	t.Setenv("QWEN_API_KEY", "")
	cfg = Config{}
	cfg.ApplyDefaults()
	if cfg.Embedding.APIKey != "dashscope-key" {
		t.Errorf("expected DASHSCOPE_API_KEY fallback, got %q", cfg.Embedding.APIKey)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 9999, ReadTimeoutSec: 30},
		Embedding:  EmbeddingConfig{APIKey: "explicit", Model: "text-embedding-v2"},
		Collection: CollectionConfig{Name: "custom", Description: "custom desc"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9999 {
		t.Errorf("expected Port=9999, got %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "explicit" {
		t.Errorf("expected explicit api key kept, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Model != "text-embedding-v2" {
		t.Errorf("expected model kept, got %q", cfg.Embedding.Model)
	}
	if cfg.Collection.Name != "custom" || cfg.Collection.Description != "custom desc" {
		t.Errorf("expected collection kept, got %+v", cfg.Collection)
	}
}

func TestApplyDefaults_DropsEmptyListEntries(t *testing.T) {
	cfg := Config{
		Embedding: EmbeddingConfig{APIKey: "k"},
		Cache:     CacheConfig{Addrs: []string{"", "localhost:6379", ""}},
		Auth:      AuthConfig{APIKeys: []string{""}},
	}
	cfg.ApplyDefaults()

	if len(cfg.Cache.Addrs) != 1 || cfg.Cache.Addrs[0] != "localhost:6379" {
		t.Errorf("unexpected cache addrs: %v", cfg.Cache.Addrs)
	}
	if len(cfg.Auth.APIKeys) != 0 {
		t.Errorf("expected empty api keys, got %v", cfg.Auth.APIKeys)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("KB_TEST_ENDPOINT", "https://set.example.com")

	in := []byte("endpoint: ${KB_TEST_ENDPOINT}\ntoken: ${KB_TEST_UNSET:-fallback}\n")
	out := string(expandEnvVars(in))

	if out != "endpoint: https://set.example.com\ntoken: fallback\n" {
		t.Errorf("unexpected expansion:\n%s", out)
	}
}
