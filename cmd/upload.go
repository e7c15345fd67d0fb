package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"blissbuilder/internal/app"
	"blissbuilder/internal/stage"
	"blissbuilder/pkg/config"
)

var (
	uploadVideo         string
	uploadTheme         string
	uploadThemeFile     string
	uploadNarrationFile string
	uploadOutputResult  string
	uploadPrivacy       string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a video to YouTube as a Short with AI disclosure",
	Long: `Upload the video with a title, description and tags built from the theme and narration.
The upload is declared as synthetic media. Prints one JSON result on stdout.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadVideo, "video", "", "Path to the video file")
	uploadCmd.Flags().StringVar(&uploadTheme, "theme", "", "Theme text (overrides --theme-file)")
	uploadCmd.Flags().StringVar(&uploadThemeFile, "theme-file", "", "Path to the theme text")
	uploadCmd.Flags().StringVar(&uploadNarrationFile, "narration-file", "", "Path to the narration text")
	uploadCmd.Flags().StringVar(&uploadOutputResult, "output-result", "", "Path for the upload result JSON")
	uploadCmd.Flags().StringVar(&uploadPrivacy, "privacy", "", "public, unlisted or private (default from config)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := stageContext(cmd.Context())
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return emitResult(stage.UploadResult{Envelope: setupFailure(err)}, setupFailure(err))
	}

	s, err := app.BuildUploadStage(cfg, slog.Default())
	if err != nil {
		return emitResult(stage.UploadResult{Envelope: setupFailure(err)}, setupFailure(err))
	}

	privacy := uploadPrivacy
	if privacy == "" {
		privacy = cfg.YouTube.Privacy
	}

	result := s.Run(ctx, stage.UploadInput{
		VideoPath:     uploadVideo,
		Theme:         uploadTheme,
		ThemePath:     uploadThemeFile,
		NarrationPath: uploadNarrationFile,
		ResultPath:    uploadOutputResult,
		Privacy:       privacy,
	})
	return emitResult(result, result.Envelope)
}
