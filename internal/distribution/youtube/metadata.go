package youtube

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"blissbuilder/internal/distribution"
	"blissbuilder/pkg/prompts"
)

const (
	maxTitleLength = 100
	titleSuffix    = " | ASMR #shorts"
	maxTags        = 15
	minTagLength   = 3
)

type Metadata struct {
	Privacy     string
	CategoryID  string
	DefaultTags []string
}

// Title formats the theme as "<Theme> | ASMR #shorts", trimming the theme so the whole
// title stays within the platform's 100 character limit.
func Title(theme string) string {
	theme = cases.Title(language.English).String(strings.Join(strings.Fields(theme), " "))
	budget := maxTitleLength - utf8.RuneCountInString(titleSuffix)
	if utf8.RuneCountInString(theme) > budget {
		theme = strings.TrimSpace(string([]rune(theme)[:budget]))
	}
	return theme + titleSuffix
}

// Tags merges the default tags with the theme's words, lowercased and de-duplicated.
func Tags(defaults []string, theme string) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.Trim(tag, " .,!?:;\"'"))
		if utf8.RuneCountInString(tag) < minTagLength || seen[tag] || len(tags) >= maxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range defaults {
		add(t)
	}
	for _, w := range strings.Fields(theme) {
		add(w)
	}
	return tags
}

func Hashtags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, "#"+strings.ReplaceAll(t, " ", ""))
	}
	return strings.Join(parts, " ")
}

// BuildRequest assembles the upload request for a video about theme.
func BuildRequest(p *prompts.Prompts, meta Metadata, videoPath, theme, narration string) (distribution.UploadRequest, error) {
	tags := Tags(meta.DefaultTags, theme)
	description, err := p.RenderDescription(prompts.DescriptionParams{
		Theme:     theme,
		Narration: strings.TrimSpace(narration),
		Hashtags:  Hashtags(tags),
	})
	if err != nil {
		return distribution.UploadRequest{}, fmt.Errorf("render description: %w", err)
	}

	return distribution.UploadRequest{
		FilePath:    videoPath,
		Title:       Title(theme),
		Description: strings.TrimSpace(description),
		Tags:        tags,
		Privacy:     meta.Privacy,
		CategoryID:  meta.CategoryID,
	}, nil
}
