package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"blissbuilder/internal/app"
	"blissbuilder/internal/metrics"
	"blissbuilder/pkg/config"
)

var (
	runInterval time.Duration
	runMode     string
	runRegion   string
	runPrivacy  string
)

var (
	runTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	runSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	runErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	runLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: trends, video, upload",
	Long: `Run the pipeline once: fetch trending ASMR videos, derive a theme, generate narration
and video, and upload to YouTube. Every run appends a row to the audit log.
With --interval the pipeline repeats until interrupted; runs never overlap.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().DurationVarP(&runInterval, "interval", "i", 0, "Repeat the pipeline at this interval (0 runs once)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Stage execution mode: inprocess or subprocess (default from config)")
	runCmd.Flags().StringVar(&runRegion, "region", "", "Region code for trend search (default from config)")
	runCmd.Flags().StringVar(&runPrivacy, "privacy", "", "Upload privacy: public, unlisted or private (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	applyRunOverrides(cfg)

	built, err := app.BuildService(ctx, cfg, app.BuildOptions{
		Logger:  slog.Default(),
		Metrics: metrics.New(),
		Verbose: verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	pipeline := app.NewPipeline(built.Service)

	if runInterval <= 0 {
		run := pipeline.Run(ctx)
		printRunSummary(run)
		return run.Err()
	}

	slog.Info("Starting scheduled mode", "interval", runInterval)
	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	for {
		printRunSummary(pipeline.Run(ctx))

		select {
		case <-ctx.Done():
			slog.Info("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func applyRunOverrides(cfg *config.Config) {
	if runMode != "" {
		cfg.Pipeline.Mode = runMode
	}
	if runRegion != "" {
		cfg.Trends.Region = runRegion
	}
	if runPrivacy != "" {
		cfg.YouTube.Privacy = runPrivacy
	}
}

func printRunSummary(run *app.PipelineRun) {
	fmt.Println(runTitleStyle.Render("\nBliss Builder run " + run.Timestamp))
	row := func(label, value string) {
		fmt.Println(runLabelStyle.Render(label) + value)
	}

	row("Output", run.OutputDir)
	theme := run.Theme
	if theme == "" {
		theme = "N/A"
	}
	row("Theme", theme)
	if run.Video != nil && run.Video.OK() {
		source := "Veo"
		if run.Video.UsedFallback() {
			source = "fallback stills"
		}
		row("Video", source)
	}

	if run.Success {
		row("URL", run.VideoURL())
		fmt.Println(runSuccessStyle.Render("✓ Pipeline completed"))
		return
	}
	fmt.Println(runErrorStyle.Render(fmt.Sprintf("✗ Pipeline failed at %s: %s", run.FailedStage(), run.Error)))
}

// stageContext cancels on interrupt so a standalone stage stops its retries.
func stageContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
