package ai

import "time"

// RuntimeConfig carries the transport knobs shared by every runtime. Zero
// values fall back to the constructor defaults.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// APIKey authenticates OpenRouter requests.
	APIKey string
	// Host points at a local Ollama server.
	Host string
}

// RuntimeFactory builds a Runtime from shared config.
type RuntimeFactory func(RuntimeConfig) Runtime

var registry = map[string]RuntimeFactory{
	ProviderOpenRouter: func(c RuntimeConfig) Runtime {
		return NewClient(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	},
	ProviderOllama: func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	},
}

// RegisterRuntime makes a provider available to GetRuntime, replacing any
// existing registration under the same name.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime builds the runtime registered under name.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(cfg), true
}
