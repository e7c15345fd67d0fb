package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"blissbuilder/internal/app"
	"blissbuilder/internal/stage"
	"blissbuilder/pkg/config"
)

var (
	fetchOutputJSON  string
	fetchOutputTheme string
	fetchRegion      string
	fetchMax         int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch trending ASMR videos and extract a theme",
	Long: `Search YouTube for trending ASMR videos, save them as JSON and write the derived theme.
Prints one JSON result on stdout.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOutputJSON, "output-json", "output/trends.json", "Path for the trends JSON")
	fetchCmd.Flags().StringVar(&fetchOutputTheme, "output-theme", "output/theme.txt", "Path for the theme text")
	fetchCmd.Flags().StringVar(&fetchRegion, "region", "", "Region code (default from config)")
	fetchCmd.Flags().IntVar(&fetchMax, "max", 50, "Maximum videos to collect")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := stageContext(cmd.Context())
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return emitResult(stage.TrendResult{Envelope: setupFailure(err)}, setupFailure(err))
	}

	s, err := app.BuildTrendStage(ctx, cfg, slog.Default())
	if err != nil {
		return emitResult(stage.TrendResult{Envelope: setupFailure(err)}, setupFailure(err))
	}

	result := s.Run(ctx, stage.TrendInput{
		TrendsPath: fetchOutputJSON,
		ThemePath:  fetchOutputTheme,
		Region:     fetchRegion,
		MaxResults: fetchMax,
	})
	return emitResult(result, result.Envelope)
}
