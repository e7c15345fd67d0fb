package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"blissbuilder/internal/distribution"
	"blissbuilder/internal/storage"
)

const (
	categoryID  = "22"
	platform    = "youtube"
	RedirectURL = "http://localhost:8085/callback"
	watchURL    = "https://youtube.com/watch?v=%s"
)

var ErrNoToken = errors.New("youtube token not found")

var _ distribution.Uploader = (*Client)(nil)

type Client struct {
	auth *Auth
	opts []option.ClientOption
}

type Auth struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenPath string
}

var scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube",
}

func NewAuth(clientID, clientSecret, tokenPath string) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
			RedirectURL:  RedirectURL,
		},
		tokenPath: tokenPath,
	}
}

// NewClient uploads through the YouTube Data API. Extra options are applied after the OAuth
// HTTP client, so an endpoint override points uploads at another host.
func NewClient(auth *Auth, opts ...option.ClientOption) *Client {
	return &Client{auth: auth, opts: opts}
}

// Upload inserts the video with its snippet and status. Every upload is declared as synthetic
// media and not made for kids.
func (c *Client) Upload(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResponse, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("failed to get auth client: %w", ErrNoToken)
	}
	httpClient, err := c.auth.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	videoFile, err := os.Open(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	defer func() { _ = videoFile.Close() }()

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	category := req.CategoryID
	if category == "" {
		category = categoryID
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = distribution.PrivacyPublic
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  category,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			ContainsSyntheticMedia:  true,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(videoFile).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}
	if uploaded.Id == "" {
		return nil, fmt.Errorf("upload returned no video id")
	}

	resp := &distribution.UploadResponse{
		ID:         uploaded.Id,
		URL:        fmt.Sprintf(watchURL, uploaded.Id),
		Platform:   platform,
		Title:      req.Title,
		Privacy:    privacy,
		Disclosure: true,
	}
	if uploaded.Snippet != nil && uploaded.Snippet.Title != "" {
		resp.Title = uploaded.Snippet.Title
	}
	if uploaded.Status != nil && uploaded.Status.PrivacyStatus != "" {
		resp.Privacy = uploaded.Status.PrivacyStatus
	}
	return resp, nil
}

func (c *Client) Platform() string {
	return platform
}

func (c *Client) Auth() *Auth {
	return c.auth
}

func (c *Client) Authenticated() bool {
	return c.auth != nil && c.auth.HasToken()
}

func (a *Auth) Config() *oauth2.Config {
	return a.config
}

func (a *Auth) TokenPath() string {
	return a.tokenPath
}

func (a *Auth) LoadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoToken, a.tokenPath)
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	a.token = &token
	return nil
}

func (a *Auth) SaveToken() error {
	data, err := json.MarshalIndent(a.token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := storage.WriteFilePrivate(a.tokenPath, data); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

func (a *Auth) GetAuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (a *Auth) Exchange(ctx context.Context, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	a.token = token
	return a.SaveToken()
}

func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return nil, err
		}
	}

	return a.config.Client(ctx, a.token), nil
}

// HasToken reports whether a token is loaded or on disk. An expired access token still
// counts when it carries a refresh token.
func (a *Auth) HasToken() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token != nil && (a.token.Valid() || a.token.RefreshToken != "")
}

func (a *Auth) IsAuthenticated() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token != nil && a.token.Valid()
}
