package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"blissbuilder/internal/storage"
	"blissbuilder/pkg/config"
)

var clearKeep int

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old run directories",
	Long:  `Remove run directories from the output directory, keeping the newest --keep runs. The audit log is kept.`,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().IntVar(&clearKeep, "keep", 5, "Number of newest runs to keep")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	local := storage.NewLocalStorage(cfg.Video.OutputDir)
	removed, err := local.PruneRuns(clearKeep)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d run(s) from %s\n", len(removed), cfg.Video.OutputDir)
	return nil
}
