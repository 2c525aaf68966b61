package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/run"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	runOutputPath  string
	runStaticDir   string
	runModel       string
	runProvider    string
	runOllamaHost  string
	runNoNarrative bool
	runSave        bool
	runTimeoutSec  int
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run the EDA pipeline on a CSV/JSON dataset and emit a JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		narrator, _, err := buildNarrator(cfg, narratorOptions{
			Disabled:   runNoNarrative,
			Model:      runModel,
			Provider:   runProvider,
			OllamaHost: runOllamaHost,
			TimeoutSec: runTimeoutSec,
		})
		if err != nil {
			return err
		}

		staticDir := runStaticDir
		if staticDir == "" && cfg != nil && cfg.StaticDir != "" {
			staticDir = cfg.StaticDir
		}

		p := pipeline.New(pipeline.Options{
			StaticDir: staticDir,
			Narrator:  narrator,
			Logger:    appLogger(),
		})

		if !runQuiet {
			fmt.Fprintf(os.Stderr, "⚙ Analyzing %s ...\n", path)
		}
		res, err := p.Run(context.Background(), path)
		if err != nil {
			return friendlyPipelineError(err, path)
		}
		if !runQuiet {
			for _, st := range res.Stages {
				fmt.Fprintf(os.Stderr, "  ✓ %s (%dms)\n", st.Name, st.DurationMS)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
			}
		}

		data, err := utils.PrettyJSON(res.Report)
		if err != nil {
			return err
		}
		if runOutputPath == "" || runOutputPath == "-" {
			fmt.Println(string(data))
		} else {
			if err := utils.SafeWriteFile(runOutputPath, data); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !runQuiet {
				fmt.Printf("✓ Wrote report to %s\n", runOutputPath)
			}
		}

		if runSave {
			root, err := runsRoot()
			if err != nil {
				return err
			}
			store := run.NewStore(root)
			rec, err := run.NewRecord(path, res)
			if err != nil {
				return fmt.Errorf("build run record: %w", err)
			}
			if err := store.Save(rec); err != nil {
				return fmt.Errorf("save run record: %w", err)
			}
			if !runQuiet {
				fmt.Printf("✓ Saved run %s\n", rec.ID)
			}
		}
		return nil
	},
}

// runsRoot resolves the run-record directory from config or the home default.
func runsRoot() (string, error) {
	if cfg != nil && cfg.RunsDir != "" {
		return cfg.RunsDir, nil
	}
	return run.DefaultDir()
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "path to write the report JSON ('-' or empty prints to stdout)")
	runCmd.Flags().StringVar(&runStaticDir, "static-dir", "", "directory for generated plot files (default from config, else 'static')")
	runCmd.Flags().StringVar(&runModel, "model", "", "override narrative model (default from config)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "AI provider for the narrative: openrouter|ollama|local")
	runCmd.Flags().StringVar(&runOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	runCmd.Flags().BoolVar(&runNoNarrative, "no-narrative", false, "skip the AI narrative stage")
	runCmd.Flags().BoolVar(&runSave, "save", false, "persist the run record under the runs directory")
	runCmd.Flags().IntVar(&runTimeoutSec, "timeout", 0, "narrative request timeout in seconds (default from config)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress progress and non-essential output")
}
