package cmd

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/spf13/cobra"
)

var workloadsCmd = &cobra.Command{
	Use:   "workloads",
	Short: "List all workloads defined in configuration",
	Long: `Workloads displays every workload defined in the configuration file
along with its table, columns, record count, and layout. Nothing is
executed and no store connection is made.

Example:
  gobulk workloads --config gobulk.yaml`,
	RunE: runWorkloads,
}

func init() {
	rootCmd.AddCommand(workloadsCmd)
}

func runWorkloads(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	names := cfg.ListWorkloads()
	if len(names) == 0 {
		cmd.Printf("No workloads defined in %s\n", configFile)
		return nil
	}

	cmd.Printf("Workloads defined in %s:\n\n", configFile)

	for i, name := range names {
		wc, err := cfg.GetWorkload(name)
		if err != nil {
			return fmt.Errorf("failed to get workload %q: %w", name, err)
		}

		layout := "conventional"
		if wc.Elastic {
			layout = "elastic (hash partitioned)"
		}

		cmd.Printf("%d. %s\n", i+1, name)
		cmd.Printf("   Table:   %s\n", wc.Table)
		cmd.Printf("   Columns: id, %s\n", strings.Join(wc.EffectiveColumns(), ", "))
		cmd.Printf("   Records: %d\n", wc.Records)
		cmd.Printf("   Layout:  %s\n", layout)
		if wc.Tag != "" {
			cmd.Printf("   Tag:     %s\n", wc.Tag)
		}
		if wc.BypassChangelog {
			cmd.Printf("   Changelog: bypassed\n")
		}
		if wc.Processing != nil {
			cmd.Printf("   Processing: parallelism=%d, delete_batch_size=%d\n",
				wc.Processing.Parallelism, wc.Processing.DeleteBatchSize)
		}

		if i < len(names)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d workload(s)\n", len(names))
	return nil
}
