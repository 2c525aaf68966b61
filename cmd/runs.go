package cmd

import (
	"fmt"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/run"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var runsDirFlag string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved pipeline runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRunsDir()
		if err != nil {
			return err
		}
		recs, err := run.NewStore(root).List()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("(no runs)")
			return nil
		}
		for _, r := range recs {
			fmt.Printf("- %s  %s  %s  %dms\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Dataset, r.DurationMS)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved run record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRunsDir()
		if err != nil {
			return err
		}
		rec, err := run.NewStore(root).Load(args[0])
		if err != nil {
			return err
		}
		data, err := utils.PrettyJSON(rec)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func resolveRunsDir() (string, error) {
	if runsDirFlag != "" {
		return runsDirFlag, nil
	}
	return runsRoot()
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.PersistentFlags().StringVar(&runsDirFlag, "dir", "", "runs directory (default from config, else ~/.dataloom/runs)")
}
