package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
	"github.com/KaramelBytes/dataloom-cli/internal/narrate"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// buildRuntime resolves provider and credentials into a concrete AI runtime.
// Provider precedence: CLI flag, then config, then OpenRouter. Vendor names
// are aliases; anything non-local routes through OpenRouter.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			rc.RetryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil && cfg.DefaultProvider != "" {
		providerName = strings.ToLower(cfg.DefaultProvider)
	}
	switch providerName {
	case "", "openai", "anthropic", "google", "gemini", "meta", "llama":
		providerName = ai.ProviderOpenRouter
	case "local", "ollama":
		providerName = ai.ProviderOllama
	}

	rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
	if rc.APIKey == "" && cfg != nil {
		rc.APIKey = cfg.APIKey
	}

	if providerName == ai.ProviderOllama {
		rc.Host = ollamaHost(cfg, opts.OllamaHost)
		if v := os.Getenv("DATALOOM_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s", providerName)
	}
	return client, providerName, nil
}

// ollamaHost picks the first configured host: flag, env, config file, then
// the standard local port.
func ollamaHost(cfg *cfgpkg.Global, flag string) string {
	if h := strings.TrimSpace(flag); h != "" {
		return h
	}
	if h := os.Getenv("DATALOOM_OLLAMA_HOST"); h != "" {
		return h
	}
	if cfg != nil && cfg.OllamaHost != "" {
		return cfg.OllamaHost
	}
	return "http://127.0.0.1:11434"
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return "openai/gpt-3.5-turbo"
}

type narratorOptions struct {
	Disabled   bool
	Model      string
	Provider   string
	OllamaHost string
	TimeoutSec int
}

// buildNarrator wires runtime, model, and limits into a pipeline narrator.
// A nil narrator (Disabled) makes the pipeline emit its placeholder narrative.
func buildNarrator(cfg *cfgpkg.Global, opts narratorOptions) (*narrate.Narrator, string, error) {
	if opts.Disabled {
		return nil, "", nil
	}
	rt, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: opts.Provider, OllamaHost: opts.OllamaHost})
	if err != nil {
		return nil, providerName, &pipeline.Error{Code: pipeline.CodeExternalService, Message: err.Error(), Err: err}
	}

	model := selectModel(cfg, opts.Model)
	timeout := 60 * time.Second
	if opts.TimeoutSec > 0 {
		timeout = time.Duration(opts.TimeoutSec) * time.Second
	} else if cfg != nil && cfg.NarrateTimeoutSec > 0 {
		timeout = time.Duration(cfg.NarrateTimeoutSec) * time.Second
	}
	tokenLimit := 0
	if cfg != nil {
		tokenLimit = cfg.PromptTokenLimit
	}
	return narrate.New(rt, model, timeout, tokenLimit, appLogger()), providerName, nil
}

// friendlyAIError rewraps runtime errors with actionable hints for common
// failure classes. The original error stays in the chain for errors.As.
func friendlyAIError(err error, providerName, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set DATALOOM_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("provider unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed. Set OPENROUTER_API_KEY or api_key in ~/.dataloom/config.yaml: %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited. Try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by the provider. Retry shortly: %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name or pick one with 'dataloom config set default_model <name>': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try lowering 'prompt_token_limit' in config so large summaries are truncated: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider returned a server error. Retry later: %w", err)
	default:
		return fmt.Errorf("narrative generation failed: %w", err)
	}
}

// friendlyPipelineError adds hints for dataset-level failures surfaced by the
// pipeline. Other pipeline errors pass through unchanged.
func friendlyPipelineError(err error, path string) error {
	var (
		ufErr *dataset.UnsupportedFormatError
		ldErr *dataset.LoadError
	)
	switch {
	case errors.As(err, &ufErr):
		return fmt.Errorf("cannot analyze %s: only .csv and .json datasets are supported: %w", path, err)
	case errors.As(err, &ldErr):
		return fmt.Errorf("failed to read %s. Check the file is well-formed (CSV rows of equal width, or a JSON array of flat objects): %w", path, err)
	default:
		return err
	}
}
