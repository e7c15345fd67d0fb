package video

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"blissbuilder/internal/storage"
)

const (
	captionFontSize   = 56
	captionLineHeight = 70
	captionWrapRatio  = 0.8
)

var (
	captionBackground = color.RGBA{R: 10, G: 10, B: 14, A: 255}
	captionForeground = color.RGBA{R: 240, G: 240, B: 240, A: 255}
)

var (
	faceOnce sync.Once
	faceErr  error
	face     font.Face
)

func captionFace() (font.Face, error) {
	faceOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("parse font: %w", err)
			return
		}
		face, faceErr = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    captionFontSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	})
	return face, faceErr
}

// RenderCaption draws text word-wrapped and centered on a solid background.
func RenderCaption(text string, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid caption size %dx%d", width, height)
	}
	face, err := captionFace()
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(captionBackground), image.Point{}, draw.Src)

	measure := func(s string) int { return font.MeasureString(face, s).Ceil() }
	lines := WrapLines(strings.Fields(text), int(float64(width)*captionWrapRatio), measure)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(captionForeground),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	y := (height - len(lines)*captionLineHeight) / 2
	for _, line := range lines {
		x := (width - measure(line)) / 2
		drawer.Dot = fixed.P(x, y+ascent)
		drawer.DrawString(line)
		y += captionLineHeight
	}

	return img, nil
}

// WrapLines greedily packs words into lines no wider than maxWidth. A single word wider
// than maxWidth gets a line of its own.
func WrapLines(words []string, maxWidth int, measure func(string) int) []string {
	var lines []string
	var current []string
	for _, w := range words {
		candidate := strings.Join(append(current, w), " ")
		if measure(candidate) <= maxWidth {
			current = append(current, w)
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = []string{w}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

func SavePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return storage.WriteFileAtomic(path, buf.Bytes())
}
