package ai

import "context"

// Runtime is the single surface the narrator needs from an AI backend: one
// non-streaming chat completion per report. OpenRouter and local Ollama both
// implement it over the shared request/response types in this package.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider names accepted by --provider flags and config. The vendor names
// (openai, anthropic, ...) are aliases routed through OpenRouter; local is an
// alias for ollama.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderMeta       = "meta"
	ProviderLlama      = "llama"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local"
)
