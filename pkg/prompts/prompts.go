package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

const defaultPromptsPath = "prompts.yaml"

//go:embed defaults.yaml
var defaultPrompts []byte

type Prompts struct {
	Theme     ThemePrompts     `yaml:"theme"`
	Narration NarrationPrompts `yaml:"narration"`
	Veo       VeoPrompts       `yaml:"veo"`
	Upload    UploadPrompts    `yaml:"upload"`
}

type ThemePrompts struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type NarrationPrompts struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type VeoPrompts struct {
	Director string `yaml:"director"`
	Enhance  string `yaml:"enhance"`
	Fallback string `yaml:"fallback"`
	Negative string `yaml:"negative"`
}

type UploadPrompts struct {
	Description string `yaml:"description"`
}

type ThemeParams struct {
	Perspective string
	Style       string
	Context     string
}

type NarrationParams struct {
	Theme    string
	Duration int
}

type DirectorParams struct {
	Theme       string
	Keywords    string
	Motion      string
	VisualStyle string
	Palette     string
	Duration    int
}

type EnhanceParams struct {
	Prompt   string
	Duration int
}

type FallbackParams struct {
	Theme  string
	Motion string
}

type DescriptionParams struct {
	Theme     string
	Narration string
	Hashtags  string
}

// Load reads prompts.yaml from the working directory, falling back to the built-in set.
// Sections missing from the file keep their built-in text.
func Load() (*Prompts, error) {
	p, err := LoadFrom(defaultPromptsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	return p, err
}

func LoadFrom(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	p, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	return p, nil
}

func Default() (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return nil, fmt.Errorf("failed to parse built-in prompts: %w", err)
	}
	return &p, nil
}

func (p *Prompts) RenderTheme(params ThemeParams) (string, error) {
	return render(p.Theme.User, params)
}

func (p *Prompts) RenderNarration(params NarrationParams) (string, error) {
	return render(p.Narration.User, params)
}

func (p *Prompts) RenderDirector(params DirectorParams) (string, error) {
	return render(p.Veo.Director, params)
}

func (p *Prompts) RenderEnhance(params EnhanceParams) (string, error) {
	return render(p.Veo.Enhance, params)
}

func (p *Prompts) RenderFallback(params FallbackParams) (string, error) {
	return render(p.Veo.Fallback, params)
}

func (p *Prompts) RenderDescription(params DescriptionParams) (string, error) {
	return render(p.Upload.Description, params)
}

func render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
