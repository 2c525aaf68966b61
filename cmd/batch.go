package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/run"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	batchOutDir      string
	batchStaticDir   string
	batchModel       string
	batchProvider    string
	batchOllamaHost  string
	batchNoNarrative bool
	batchSave        bool
	batchTimeoutSec  int
	batchQuiet       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <files...>",
	Short: "Run the EDA pipeline over multiple datasets with progress",
	Long: `Batch expands glob patterns, runs the pipeline on every matched dataset,
and keeps going when a file fails. Reports are printed to stdout unless
--out-dir is given, in which case each dataset gets <name>.report.json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		seen := map[string]struct{}{}
		for _, arg := range args {
			matches, _ := filepath.Glob(arg)
			if len(matches) == 0 {
				// treat as literal path if exists
				if _, err := os.Stat(arg); err == nil {
					matches = []string{arg}
				}
			}
			for _, m := range matches {
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				files = append(files, m)
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		sort.Strings(files)

		narrator, _, err := buildNarrator(cfg, narratorOptions{
			Disabled:   batchNoNarrative,
			Model:      batchModel,
			Provider:   batchProvider,
			OllamaHost: batchOllamaHost,
			TimeoutSec: batchTimeoutSec,
		})
		if err != nil {
			return err
		}

		staticDir := batchStaticDir
		if staticDir == "" && cfg != nil && cfg.StaticDir != "" {
			staticDir = cfg.StaticDir
		}

		if batchOutDir != "" {
			if err := utils.EnsureDir(batchOutDir); err != nil {
				return fmt.Errorf("create out dir: %w", err)
			}
		}

		p := pipeline.New(pipeline.Options{
			StaticDir: staticDir,
			Narrator:  narrator,
			Logger:    appLogger(),
		})

		var store *run.Store
		if batchSave {
			root, err := runsRoot()
			if err != nil {
				return err
			}
			store = run.NewStore(root)
		}

		total := len(files)
		failed := 0
		for i, path := range files {
			if !batchQuiet {
				fmt.Fprintf(os.Stderr, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := p.Run(context.Background(), path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, friendlyPipelineError(err, path))
				continue
			}
			if !batchQuiet {
				for _, w := range res.Warnings {
					fmt.Fprintf(os.Stderr, "⚠ %s: %s\n", filepath.Base(path), w)
				}
			}

			data, err := utils.PrettyJSON(res.Report)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
				continue
			}
			if batchOutDir != "" {
				outFile := batchReportPath(batchOutDir, path)
				if err := utils.SafeWriteFile(outFile, data); err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "✗ %s: write report: %v\n", path, err)
					continue
				}
				if !batchQuiet {
					fmt.Printf("✓ Wrote %s\n", outFile)
				}
			} else {
				fmt.Println(string(data))
			}

			if store != nil {
				if rec, err := run.NewRecord(path, res); err != nil {
					fmt.Fprintf(os.Stderr, "⚠ %s: save run record: %v\n", path, err)
				} else if err := store.Save(rec); err != nil {
					fmt.Fprintf(os.Stderr, "⚠ %s: save run record: %v\n", path, err)
				} else if !batchQuiet {
					fmt.Printf("✓ Saved run %s\n", rec.ID)
				}
			}
		}

		if !batchQuiet {
			fmt.Fprintf(os.Stderr, "Done: %d succeeded, %d failed (%d total)\n", total-failed, failed, total)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d datasets failed", failed, total)
		}
		return nil
	},
}

// batchReportPath picks <out>/<base>.report.json, appending __2, __3, ... when
// a previous dataset in the batch already produced that name.
func batchReportPath(outDir, datasetPath string) string {
	base := filepath.Base(datasetPath)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	outFile := filepath.Join(outDir, safe+".report.json")
	if _, err := os.Stat(outFile); err != nil {
		return outFile
	}
	idx := 2
	for {
		cand := filepath.Join(outDir, fmt.Sprintf("%s__%d.report.json", safe, idx))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
		idx++
	}
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "directory for per-dataset report JSONs (prints to stdout if empty)")
	batchCmd.Flags().StringVar(&batchStaticDir, "static-dir", "", "directory for generated plot files (default from config, else 'static')")
	batchCmd.Flags().StringVar(&batchModel, "model", "", "override narrative model (default from config)")
	batchCmd.Flags().StringVar(&batchProvider, "provider", "", "AI provider for the narrative: openrouter|ollama|local")
	batchCmd.Flags().StringVar(&batchOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	batchCmd.Flags().BoolVar(&batchNoNarrative, "no-narrative", false, "skip the AI narrative stage")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist a run record per dataset")
	batchCmd.Flags().IntVar(&batchTimeoutSec, "timeout", 0, "narrative request timeout in seconds (default from config)")
	batchCmd.Flags().BoolVar(&batchQuiet, "quiet", false, "suppress progress and non-essential output")
}
