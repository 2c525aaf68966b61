package ai

// ModelInfo carries the context window and pricing used for the pre-flight
// hints that dataloom narrate prints before calling a provider.
type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K prompt tokens
	OutputPerK    float64 // USD per 1K completion tokens
}

// catalog lists the models the narrator recognizes. Rows with a provider
// prefix are OpenRouter ids; bare tags are local Ollama models, which cost
// nothing. Prices drift, so treat them as estimates rather than quotes.
var catalog = []ModelInfo{
	{Name: "openai/gpt-3.5-turbo", ContextTokens: 16385, InputPerK: 0.0005, OutputPerK: 0.0015},
	{Name: "openai/gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.0006, OutputPerK: 0.0024},
	{Name: "openai/gpt-4o", ContextTokens: 128000, InputPerK: 0.005, OutputPerK: 0.015},
	{Name: "anthropic/claude-3.5-sonnet", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
	{Name: "anthropic/claude-3-haiku", ContextTokens: 200000, InputPerK: 0.00025, OutputPerK: 0.00125},
	{Name: "deepseek/deepseek-r1:free", ContextTokens: 128000},
	{Name: "llama3:latest", ContextTokens: 8192},
	{Name: "llama3.1:8b-instruct", ContextTokens: 8192},
	{Name: "mistral:7b-instruct", ContextTokens: 8192},
	{Name: "phi3:mini-4k-instruct", ContextTokens: 4096},
}

var models = func() map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(catalog))
	for _, mi := range catalog {
		m[mi.Name] = mi
	}
	return m
}()

// LookupModel returns the catalog entry for name, if any.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD prices a call from token counts. Unknown models return
// ok=false so callers skip the cost line instead of printing zero.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}
