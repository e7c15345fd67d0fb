package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"blissbuilder/internal/distribution/youtube"
)

const (
	envFile          = ".env"
	youtubeTokenPath = "./youtube_token.json"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for Blissbuilder",
	Long:  `Check for ffmpeg, create the output directory and write API keys to .env.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("🫧 Blissbuilder Setup"))

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"Checking tools", checkTools},
		{"Creating directories", createDirectories},
		{"Configuring environment", configureEnv},
	}

	for _, step := range steps {
		if err := step.fn(cmd.Context()); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}

func checkTools(context.Context) error {
	missing := []string{}
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if !commandExists(tool) {
			missing = append(missing, tool)
		}
	}
	if len(missing) == 0 {
		return runWithSpinner("Checking ffmpeg", func() error {
			return runSetupCmd("ffmpeg", "-version")
		})
	}

	var install bool
	err := huh.NewConfirm().
		Title(strings.Join(missing, " and ") + " not found").
		Description("ffmpeg is required to assemble fallback videos and check Veo output. Install it?").
		Affirmative("Yes").
		Negative("No").
		Value(&install).
		Run()
	if err != nil {
		return err
	}

	if !install {
		fmt.Println(warnStyle.Render("Skipped ffmpeg install; fallback videos will fail until it is on PATH"))
		return nil
	}

	return runWithSpinner("Installing ffmpeg", func() error {
		switch runtime.GOOS {
		case "darwin":
			return runSetupCmd("brew", "install", "ffmpeg")
		case "linux":
			return runSetupCmd("sh", "-c", "sudo apt-get install -y ffmpeg")
		default:
			return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
		}
	})
}

func createDirectories(context.Context) error {
	if err := os.MkdirAll("output", 0755); err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	fmt.Println(successStyle.Render("✓ Created directories"))
	return nil
}

func configureEnv(ctx context.Context) error {
	env := map[string]string{}
	if existing, err := godotenv.Read(envFile); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Update it? Existing keys are kept unless you enter a new value.").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
		env = existing
	}

	if err := configureGCP(ctx, env); err != nil {
		return err
	}

	if err := configureRequiredKeys(env); err != nil {
		return err
	}

	if err := configureOptionalKeys(env); err != nil {
		return err
	}

	return writeEnvFile(env)
}

func configureGCP(ctx context.Context, env map[string]string) error {
	var setupGCP bool
	if err := huh.NewConfirm().
		Title("Setup Google Cloud?").
		Description("Required for trend search, YouTube uploads and the optional GCS archive").
		Value(&setupGCP).
		Run(); err != nil {
		return err
	}

	if !setupGCP {
		return nil
	}

	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found - install from https://cloud.google.com/sdk/docs/install"))
		return nil
	}

	project, err := selectGCPProject(env)
	if project == "" {
		fmt.Println(warnStyle.Render(fmt.Sprintf("GCP setup skipped: %v", err)))
		return nil
	}
	env["GOOGLE_CLOUD_PROJECT"] = project
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
	}

	if err := setupYouTubeAPIKey(env); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("YouTube API key skipped: %v", err)))
	}

	if err := setupYouTubeOAuth(ctx, env); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("YouTube OAuth skipped: %v", err)))
	}

	return nil
}

// gcpAPIs are the services the pipeline calls: trend search and upload, Veo, secrets and the archive bucket.
var gcpAPIs = []string{
	"youtube.googleapis.com",
	"generativelanguage.googleapis.com",
	"secretmanager.googleapis.com",
	"storage.googleapis.com",
}

var gcpProjectID = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

func validateProjectID(id string) error {
	if !gcpProjectID.MatchString(id) {
		return fmt.Errorf("%q is not a valid project ID", id)
	}
	return nil
}

// selectGCPProject prefills the project from .env, then from gcloud, and enables gcpAPIs on it.
func selectGCPProject(env map[string]string) (string, error) {
	project := env["GOOGLE_CLOUD_PROJECT"]
	if project == "" {
		if out, err := exec.Command("gcloud", "config", "get-value", "project").Output(); err == nil {
			project = strings.TrimSpace(string(out))
		}
	}

	if err := huh.NewInput().
		Title("Google Cloud project ID").
		Description("Create one at https://console.cloud.google.com/projectcreate if needed").
		Value(&project).
		Validate(validateProjectID).
		Run(); err != nil {
		return "", err
	}

	err := runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, gcpAPIs...)
		return runSetupCmd("gcloud", append(args, "--project", project)...)
	})
	return project, err
}

func setupYouTubeAPIKey(env map[string]string) error {
	fmt.Println(infoStyle.Render(`
To create a YouTube Data API key:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "API Key"
3. Restrict it to the YouTube Data API v3
`))

	var apiKey string
	if err := huh.NewInput().
		Title("YouTube Data API Key").
		Description("Used to search trending ASMR videos").
		EchoMode(huh.EchoModePassword).
		Value(&apiKey).
		Run(); err != nil {
		return err
	}

	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		env["YOUTUBE_API_KEY"] = apiKey
	}
	return nil
}

func setupYouTubeOAuth(ctx context.Context, env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup YouTube OAuth?").
		Description("Required for uploading videos to YouTube").
		Value(&setup).
		Run(); err != nil || !setup {
		return err
	}

	fmt.Println(infoStyle.Render(`
To create OAuth credentials:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "OAuth client ID"
3. Choose "Desktop app" as application type
4. Copy the Client ID and Client Secret
`))

	var clientID, clientSecret string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("YouTube Client ID").
				Value(&clientID),
			huh.NewInput().
				Title("YouTube Client Secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	if clientID != "" {
		env["YOUTUBE_CLIENT_ID"] = clientID
	}
	if clientSecret != "" {
		env["YOUTUBE_CLIENT_SECRET"] = clientSecret
	}

	if clientID != "" && clientSecret != "" {
		var authenticate bool
		if err := huh.NewConfirm().
			Title("Authenticate with YouTube now?").
			Description("Opens browser to complete OAuth flow").
			Value(&authenticate).
			Run(); err != nil {
			return err
		}

		if authenticate {
			auth := youtube.NewAuth(clientID, clientSecret, youtubeTokenPath)
			if err := runYouTubeAuth(ctx, auth); err != nil {
				fmt.Println(warnStyle.Render(fmt.Sprintf("OAuth flow failed: %v", err)))
				fmt.Println(infoStyle.Render("You can retry later with: blissbuilder auth youtube"))
			}
		}
	}

	return nil
}

func configureRequiredKeys(env map[string]string) error {
	groqKey := env["GROQ_API_KEY"]

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GROQ API Key").
				Description("https://console.groq.com/keys").
				EchoMode(huh.EchoModePassword).
				Value(&groqKey).
				Validate(required("GROQ API Key")),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	env["GROQ_API_KEY"] = strings.TrimSpace(groqKey)
	return nil
}

func configureOptionalKeys(env map[string]string) error {
	if err := configureGemini(env); err != nil {
		return err
	}

	if err := configureGCS(env); err != nil {
		return err
	}

	return nil
}

func configureGemini(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup Gemini / Veo?").
		Description("For generated video; without it every run uses caption stills (optional)").
		Value(&setup).
		Run(); err != nil {
		return err
	}

	if !setup {
		return nil
	}

	fmt.Println(infoStyle.Render(`
To get a Gemini API key:
1. Go to https://aistudio.google.com/apikey
2. Create a key in your project
3. Veo access depends on your account tier
`))

	var apiKey string
	if err := huh.NewInput().
		Title("Gemini API Key").
		EchoMode(huh.EchoModePassword).
		Value(&apiKey).
		Run(); err != nil {
		return err
	}

	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		env["GEMINI_API_KEY"] = apiKey
	}
	return nil
}

func configureGCS(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Archive runs to Google Cloud Storage?").
		Description("Copies each run directory to a bucket; also set gcs.enabled in config.yaml (optional)").
		Value(&setup).
		Run(); err != nil {
		return err
	}

	if !setup {
		return nil
	}

	var bucket string
	if err := huh.NewInput().
		Title("GCS bucket name").
		Value(&bucket).
		Run(); err != nil {
		return err
	}

	if bucket = strings.TrimSpace(bucket); bucket != "" {
		env["GCS_BUCKET"] = bucket
	}
	return nil
}

func writeEnvFile(env map[string]string) error {
	for key, val := range env {
		if val == "" {
			delete(env, key)
		}
	}
	if err := godotenv.Write(env, envFile); err != nil {
		return fmt.Errorf("write %s: %w", envFile, err)
	}
	if err := os.Chmod(envFile, 0600); err != nil {
		return fmt.Errorf("restrict %s: %w", envFile, err)
	}

	fmt.Println(successStyle.Render("✓ Wrote .env file"))
	printNextSteps()
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Check credentials: blissbuilder auth status")
	fmt.Println("  2. Try one stage:    blissbuilder fetch --output-json output/trends.json")
	fmt.Println("  3. Run the pipeline: blissbuilder run")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
