package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"blissbuilder/internal/app"
	"blissbuilder/internal/stage"
	"blissbuilder/pkg/config"
)

var (
	generateTheme           string
	generateThemeFile       string
	generateTrendsJSON      string
	generateOutput          string
	generateOutputNarration string
	generateOutputPrompt    string
	generateDuration        int
	generateFPS             int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate narration and an ASMR video for a theme",
	Long: `Write narration for the theme with Groq and generate the video with Veo, falling back to
caption stills when Veo is unavailable. Prints one JSON result on stdout.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateTheme, "theme", "", "Theme text (overrides --theme-file)")
	generateCmd.Flags().StringVar(&generateThemeFile, "theme-file", "", "Path to the theme text")
	generateCmd.Flags().StringVar(&generateTrendsJSON, "trends-json", "", "Path to the trends JSON used as prompt context")
	generateCmd.Flags().StringVar(&generateOutput, "output", "output/asmr_video.mp4", "Path for the video")
	generateCmd.Flags().StringVar(&generateOutputNarration, "output-narration", "", "Path for the narration text")
	generateCmd.Flags().StringVar(&generateOutputPrompt, "output-prompt", "", "Path for the video prompt")
	generateCmd.Flags().IntVar(&generateDuration, "duration", 0, "Video duration in seconds (default from config)")
	generateCmd.Flags().IntVar(&generateFPS, "fps", 0, "Frame rate (default from config)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := stageContext(cmd.Context())
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return emitResult(stage.VideoResult{Envelope: setupFailure(err)}, setupFailure(err))
	}
	if generateDuration > 0 {
		cfg.Video.Duration = generateDuration
	}
	if generateFPS > 0 {
		cfg.Video.FPS = generateFPS
	}

	s, err := app.BuildVideoStage(ctx, cfg, slog.Default())
	if err != nil {
		return emitResult(stage.VideoResult{Envelope: setupFailure(err)}, setupFailure(err))
	}

	result := s.Run(ctx, stage.VideoInput{
		Theme:         generateTheme,
		ThemePath:     generateThemeFile,
		TrendsPath:    generateTrendsJSON,
		VideoPath:     generateOutput,
		NarrationPath: generateOutputNarration,
		PromptPath:    generateOutputPrompt,
		Duration:      cfg.Video.Duration,
		FPS:           cfg.Video.FPS,
	})
	return emitResult(result, result.Envelope)
}
