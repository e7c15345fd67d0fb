package distribution

import "context"

const (
	PrivacyPublic   = "public"
	PrivacyUnlisted = "unlisted"
	PrivacyPrivate  = "private"
)

type UploadRequest struct {
	FilePath    string
	Title       string
	Description string
	Tags        []string
	Privacy     string
	CategoryID  string
}

// UploadResponse is what the platform assigned. Disclosure reports whether the upload was
// flagged as synthetic media.
type UploadResponse struct {
	ID         string `json:"video_id"`
	URL        string `json:"video_url"`
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	Privacy    string `json:"privacy"`
	Disclosure bool   `json:"ai_disclosed"`
}

type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)
	Platform() string
}

func ValidPrivacy(privacy string) bool {
	switch privacy {
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return true
	}
	return false
}
