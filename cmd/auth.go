package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"blissbuilder/internal/distribution/youtube"
	"blissbuilder/pkg/config"
)

const authTimeout = 5 * time.Minute

var (
	authInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with external services",
	Long:  `Authenticate with YouTube or other services using credentials from .env`,
}

var authYouTubeCmd = &cobra.Command{
	Use:   "youtube",
	Short: "Authenticate with YouTube (OAuth)",
	Long:  `Complete the YouTube OAuth flow using the client credentials from .env and store the token.`,
	RunE:  runAuthYouTube,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status for all services",
	Long:  `Verify which services are configured and authenticated.`,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authYouTubeCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(authInfoStyle.Render("\nService Authentication Status:\n"))

	if cfg.YouTubeAPIKey != "" {
		fmt.Println(authSuccessStyle.Render("✓ YouTube Data API: API key configured"))
	} else {
		fmt.Println(authErrorStyle.Render("✗ YouTube Data API: missing YOUTUBE_API_KEY (trend fetching disabled)"))
	}

	if cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		auth := youtube.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
		if auth.HasToken() {
			fmt.Println(authSuccessStyle.Render("✓ YouTube upload: authenticated (token exists)"))
		} else {
			fmt.Println(authErrorStyle.Render("✗ YouTube upload: credentials set, but not authenticated"))
			fmt.Println(authInfoStyle.Render("  Run: blissbuilder auth youtube"))
		}
	} else {
		fmt.Println(authErrorStyle.Render("✗ YouTube upload: missing YOUTUBE_CLIENT_ID or YOUTUBE_CLIENT_SECRET"))
	}

	if cfg.GroqAPIKey != "" {
		fmt.Println(authSuccessStyle.Render("✓ Groq: API key configured"))
	} else {
		fmt.Println(authErrorStyle.Render("✗ Groq: missing GROQ_API_KEY (narration disabled, themes from keyword table)"))
	}

	if cfg.GeminiAPIKey != "" {
		fmt.Println(authSuccessStyle.Render("✓ Gemini: API key configured"))
	} else {
		fmt.Println(authInfoStyle.Render("○ Gemini: not configured (fallback video only)"))
	}

	switch {
	case cfg.GCS.Enabled && cfg.GCSBucket != "":
		fmt.Println(authSuccessStyle.Render("✓ GCS archive: gs://" + cfg.GCSBucket + "/" + cfg.GCS.Prefix))
	case cfg.GCS.Enabled:
		fmt.Println(authErrorStyle.Render("✗ GCS archive: enabled but GCS_BUCKET not set"))
	default:
		fmt.Println(authInfoStyle.Render("○ GCS archive: not configured (optional)"))
	}

	if cfg.Secrets.Project != "" {
		fmt.Println(authSuccessStyle.Render("✓ Secret Manager: project " + cfg.Secrets.Project))
	}

	fmt.Println()
	return nil
}

func runAuthYouTube(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.YouTubeClientID == "" || cfg.YouTubeClientSecret == "" {
		return fmt.Errorf("YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET must be set in .env")
	}

	auth := youtube.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
	return runYouTubeAuth(cmd.Context(), auth)
}

func runYouTubeAuth(ctx context.Context, auth *youtube.Auth) error {
	redirect, err := url.Parse(auth.Config().RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect url: %w", err)
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", ":"+redirect.Port())
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != redirect.Path {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no code in callback")
			_, _ = fmt.Fprintf(w, "<html><body><h1>Error</h1><p>No authorization code received.</p></body></html>")
			return
		}

		codeChan <- code
		_, _ = fmt.Fprintf(w, "<html><body><h1>Success!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	authURL := auth.GetAuthURL(state)
	fmt.Fprintln(os.Stderr, authInfoStyle.Render("\nOpening browser for YouTube authentication..."))
	fmt.Fprintln(os.Stderr, authInfoStyle.Render("If browser doesn't open, visit:\n"+authURL))

	_ = browser.OpenURL(authURL)

	fmt.Fprintln(os.Stderr, authInfoStyle.Render("\nWaiting for authentication..."))

	select {
	case code := <-codeChan:
		if err := auth.Exchange(ctx, code); err != nil {
			return err
		}
		fmt.Println(authSuccessStyle.Render("✓ YouTube authentication complete"))
		fmt.Println(authSuccessStyle.Render("  Token saved to: " + auth.TokenPath()))
		return nil

	case err := <-errChan:
		return err

	case <-ctx.Done():
		return ctx.Err()

	case <-time.After(authTimeout):
		return fmt.Errorf("authentication timed out")
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
