package narrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

const systemPrompt = "You are an expert data scientist specialized in EDA and data insights."

// MaxNarrativeTokens caps the generated completion length.
const MaxNarrativeTokens = 300

// Input carries the analysis results the narrative is built from.
type Input struct {
	Validation analysis.Validation
	Info       analysis.Info
	Summary    map[string]analysis.ColumnStats
	Anomalies  map[string]int
}

// Narrator turns analysis results into a short prose summary via an AI runtime.
// A nil runtime or any generation failure degrades to a fallback string; it
// never aborts the caller.
type Narrator struct {
	Runtime    ai.Runtime
	Model      string
	Timeout    time.Duration
	TokenLimit int
	Logger     *slog.Logger
}

// New returns a Narrator with sane defaults filled in.
func New(rt ai.Runtime, model string, timeout time.Duration, tokenLimit int, logger *slog.Logger) *Narrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Narrator{
		Runtime:    rt,
		Model:      model,
		Timeout:    timeout,
		TokenLimit: tokenLimit,
		Logger:     logger,
	}
}

// Fallback is the narrative used when generation fails for any reason.
func Fallback(err error) string {
	return "An error occurred while generating narrative: " + err.Error()
}

// Narrate generates the narrative for in. It never returns an error; the
// fallback string is substituted on failure so a report is always complete.
func (n *Narrator) Narrate(ctx context.Context, in Input) string {
	logger := n.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	text, err := n.Generate(ctx, in)
	if err != nil {
		logger.Warn("narrative generation failed", "model", n.Model, "error", err)
		return Fallback(err)
	}
	return text
}

// Generate runs a single narration request and surfaces the raw error so
// callers can inspect it. Pipeline callers use Narrate, which degrades to the
// fallback string instead.
func (n *Narrator) Generate(ctx context.Context, in Input) (string, error) {
	if n.Runtime == nil {
		return "", errors.New("no AI runtime configured")
	}

	prompt := n.boundedPrompt(in)
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := n.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: n.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: MaxNarrativeTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("model returned empty content")
	}
	if n.Logger != nil {
		if cost, ok := ai.EstimateCostUSD(n.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
			n.Logger.Debug("narrative generated",
				"model", n.Model,
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens,
				"est_cost_usd", cost)
		}
	}
	return text, nil
}

// BuildPrompt renders the deterministic user prompt for in.
func BuildPrompt(in Input) string {
	return assemblePrompt(
		sectionJSON(in.Validation),
		sectionJSON(in.Info),
		sectionJSON(in.Summary),
		sectionJSON(in.Anomalies),
	)
}

// boundedPrompt builds the prompt and, when it exceeds the token limit, cuts
// the JSON payload sections down so the instruction scaffold stays intact.
func (n *Narrator) boundedPrompt(in Input) string {
	validation := sectionJSON(in.Validation)
	info := sectionJSON(in.Info)
	summary := sectionJSON(in.Summary)
	anomalies := sectionJSON(in.Anomalies)

	prompt := assemblePrompt(validation, info, summary, anomalies)
	if n.TokenLimit <= 0 || utils.CountTokens(prompt) <= n.TokenLimit {
		return prompt
	}

	overhead := utils.CountTokens(assemblePrompt("", "", "", ""))
	budget := (n.TokenLimit - overhead) / 4
	if budget < 1 {
		budget = 1
	}
	if n.Logger != nil {
		n.Logger.Warn("prompt exceeds token limit, truncating payload sections",
			"tokens", utils.CountTokens(prompt), "limit", n.TokenLimit)
	}
	return assemblePrompt(
		truncateSection(validation, budget),
		truncateSection(info, budget),
		truncateSection(summary, budget),
		truncateSection(anomalies, budget),
	)
}

func assemblePrompt(validation, info, summary, anomalies string) string {
	var b strings.Builder
	b.WriteString("Based on the following EDA results, provide a concise narrative explanation in 250 words or less. ")
	b.WriteString("Please structure your response in bullet points using HTML tags as plain text:\n\n")
	fmt.Fprintf(&b, "Validation: %s\n\n", validation)
	fmt.Fprintf(&b, "Summary Information: %s\n\n", info)
	fmt.Fprintf(&b, "Summary Statistics: %s\n\n", summary)
	fmt.Fprintf(&b, "Anomalies: %s\n\n", anomalies)
	b.WriteString("In your explanation, address the following:\n")
	b.WriteString("<ul>\n")
	b.WriteString("<li>Any interesting trends or patterns in the data.</li>\n")
	b.WriteString("<li>Potential data quality issues or outliers.</li>\n")
	b.WriteString("<li>Suggestions for further analysis or next steps.</li>\n")
	b.WriteString("</ul>\n\n")
	b.WriteString("Ensure that the response is formatted as a plain string, with HTML tags (e.g., <ul>, <li>) included as part of the text, ")
	b.WriteString("so it can be included in a JSON response and displayed as a plain string with HTML tags.")
	return b.String()
}

func sectionJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func truncateSection(s string, limit int) string {
	if utils.CountTokens(s) <= limit {
		return s
	}
	return utils.TruncateToTokenLimit(s, limit) + " ...(truncated)"
}
