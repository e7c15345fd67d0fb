package gemini

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"blissbuilder/internal/trends"
	"blissbuilder/pkg/prompts"
)

const (
	minPromptLength = 100
	contextRecords  = 10
	contextKeywords = 10
)

var ErrShortPrompt = errors.New("generated prompt too short")

var (
	visualStyles = []string{
		"macro close-up photography",
		"slow-motion cinematic",
		"smooth dolly shot",
		"orbital camera movement",
		"first-person POV perspective",
		"top-down bird's eye view",
	}
	colorPalettes = []string{
		"soft pastels with dreamy lighting",
		"muted earth tones with warm ambiance",
		"cool blues and greens with tranquil mood",
		"monochromatic with subtle gradients",
	}
	motionTypes = []string{
		"360-degree slow rotation",
		"gentle oscillating zoom in and out",
		"smooth circular orbit around subject",
		"rhythmic pulsing expansion and contraction",
	}
	loopMotions = []string{
		"Camera orbits 360° around subject in 8 seconds, returning to exact start position for perfect loop",
		"Smooth zoom in for 4s then zoom out for 4s, creating seamless breathing loop cycle",
		"Camera rotates clockwise, completing one full 360° rotation in 8 seconds for continuous loop",
	}
)

// ContextKeywords gathers up to three keywords and two hashtags from each of the first ten records,
// de-duplicated in order and capped at ten.
func ContextKeywords(records []trends.Record) []string {
	if len(records) > contextRecords {
		records = records[:contextRecords]
	}

	seen := make(map[string]bool)
	var keywords []string
	add := func(items []string, n int) {
		for _, item := range items[:min(n, len(items))] {
			if seen[item] {
				continue
			}
			seen[item] = true
			keywords = append(keywords, item)
		}
	}
	for _, r := range records {
		add(r.Keywords, 3)
		add(r.Hashtags, 2)
	}

	if len(keywords) > contextKeywords {
		keywords = keywords[:contextKeywords]
	}
	return keywords
}

// GeneratePrompt asks Gemini to direct a looping portrait shot for theme.
func (c *Client) GeneratePrompt(ctx context.Context, theme string, records []trends.Record) (string, error) {
	request, err := c.prompts.RenderDirector(prompts.DirectorParams{
		Theme:       theme,
		Keywords:    strings.Join(ContextKeywords(records), ", "),
		Motion:      motionTypes[c.rng.Intn(len(motionTypes))],
		VisualStyle: visualStyles[c.rng.Intn(len(visualStyles))],
		Palette:     colorPalettes[c.rng.Intn(len(colorPalettes))],
		Duration:    c.opts.Duration,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	c.logger.Info("Generating video prompt", "model", c.opts.PromptModel)
	content, err := c.text.Generate(ctx, c.opts.PromptModel, request)
	if err != nil {
		return "", err
	}

	prompt := strings.TrimSpace(content)
	if len(prompt) <= minPromptLength {
		return "", fmt.Errorf("%w: %d characters", ErrShortPrompt, len(prompt))
	}
	return prompt, nil
}

// FallbackPrompt builds a video prompt for theme from the fixed loop motions.
func FallbackPrompt(p *prompts.Prompts, theme string, rng *rand.Rand) (string, error) {
	var motion string
	if rng == nil {
		motion = loopMotions[rand.Intn(len(loopMotions))]
	} else {
		motion = loopMotions[rng.Intn(len(loopMotions))]
	}

	prompt, err := p.RenderFallback(prompts.FallbackParams{Theme: theme, Motion: motion})
	if err != nil {
		return "", fmt.Errorf("render fallback prompt: %w", err)
	}
	return strings.TrimSpace(prompt), nil
}
