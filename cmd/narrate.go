package cmd

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/narrate"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	narModel      string
	narProvider   string
	narOllamaHost string
	narTimeoutSec int
	narOutputPath string
	narUpdate     bool
	narDryRun     bool
	narQuiet      bool
)

var narrateCmd = &cobra.Command{
	Use:   "narrate <report.json>",
	Short: "Regenerate the AI narrative for a saved report",
	Long: `Narrate replays only the narrative stage over a report produced by
'dataloom run'. Unlike the pipeline, which substitutes a fallback string on
failure, this command surfaces provider errors so they can be fixed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}
		var rep pipeline.Report
		if err := json.Unmarshal(raw, &rep); err != nil {
			return fmt.Errorf("parse report %s: %w", path, err)
		}

		in := narrate.Input{
			Validation: rep.Validation,
			Info:       rep.SummaryInfo,
			Summary:    rep.Summary,
			Anomalies:  rep.Anomalies,
		}
		prompt := narrate.BuildPrompt(in)
		tokens := utils.CountTokens(prompt)

		if !narQuiet {
			bd := utils.TokenBreakdown(map[string]string{
				"validation": sectionString(rep.Validation),
				"info":       sectionString(rep.SummaryInfo),
				"summary":    sectionString(rep.Summary),
				"anomalies":  sectionString(rep.Anomalies),
			})
			fmt.Fprintf(os.Stderr, "Tokens: total≈%d (validation≈%d, info≈%d, summary≈%d, anomalies≈%d)\n",
				tokens, bd["validation"], bd["info"], bd["summary"], bd["anomalies"])
		}

		// Model metadata and pricing warnings
		model := selectModel(cfg, narModel)
		if mi, ok := ai.LookupModel(model); ok {
			if tokens+narrate.MaxNarrativeTokens > mi.ContextTokens && !narQuiet {
				fmt.Fprintf(os.Stderr, "⚠ Prompt (%d tokens) + completion (%d) exceeds %s context window (~%d tokens). Set 'prompt_token_limit' in config to truncate.\n",
					tokens, narrate.MaxNarrativeTokens, mi.Name, mi.ContextTokens)
			}
			if cost, ok := ai.EstimateCostUSD(model, tokens, narrate.MaxNarrativeTokens); ok && !narQuiet {
				fmt.Fprintf(os.Stderr, "Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
			}
		}

		if narDryRun {
			if !narQuiet {
				// Deterministic dry-run request id for observability
				sum := sha1.Sum([]byte(prompt))
				fmt.Fprintf(os.Stderr, "--dry-run: no API call will be made. Prompt preview below --\n")
				fmt.Fprintf(os.Stderr, "Request ID (dry-run): sim_%x\n", sum[:6])
			}
			fmt.Println(prompt)
			return nil
		}

		narrator, providerName, err := buildNarrator(cfg, narratorOptions{
			Model:      narModel,
			Provider:   narProvider,
			OllamaHost: narOllamaHost,
			TimeoutSec: narTimeoutSec,
		})
		if err != nil {
			return err
		}

		text, err := narrator.Generate(context.Background(), in)
		if err != nil {
			return friendlyAIError(err, providerName, narrator.Model)
		}

		if narOutputPath != "" {
			if err := utils.SafeWriteFile(narOutputPath, []byte(text+"\n")); err != nil {
				return fmt.Errorf("write narrative: %w", err)
			}
			if !narQuiet {
				fmt.Printf("✓ Wrote narrative to %s\n", narOutputPath)
			}
		} else {
			fmt.Println(text)
		}

		if narUpdate {
			rep.Narrative = text
			data, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(path, data); err != nil {
				return fmt.Errorf("update report: %w", err)
			}
			if !narQuiet {
				fmt.Printf("✓ Updated %s\n", path)
			}
		}
		return nil
	},
}

func sectionString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func init() {
	rootCmd.AddCommand(narrateCmd)
	narrateCmd.Flags().StringVar(&narModel, "model", "", "override narrative model (default from config)")
	narrateCmd.Flags().StringVar(&narProvider, "provider", "", "AI provider: openrouter|ollama|local")
	narrateCmd.Flags().StringVar(&narOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	narrateCmd.Flags().IntVar(&narTimeoutSec, "timeout", 0, "request timeout in seconds (default from config)")
	narrateCmd.Flags().StringVarP(&narOutputPath, "output", "o", "", "optional path to write the narrative text")
	narrateCmd.Flags().BoolVar(&narUpdate, "update", false, "write the new narrative back into the report file")
	narrateCmd.Flags().BoolVar(&narDryRun, "dry-run", false, "build the prompt and print token breakdown without calling the API")
	narrateCmd.Flags().BoolVar(&narQuiet, "quiet", false, "suppress non-essential output")
}
