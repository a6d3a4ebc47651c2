// Package imagegen produces the video's background: a generated image for
// the topic with a semi-transparent title banner composited over it.
package imagegen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // generated images occasionally arrive as PNG
	"math/rand"
	"os"
	"strings"

	"meditation-video-go/internal/config"
	"meditation-video-go/internal/oai"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

const jpegQuality = 92

type Composer struct {
	cfg     config.Config
	backend oai.Backend
	layout  *workspace.Layout
	prompt  string
}

// New builds a composer. The prompt embellishments are drawn from the run
// RNG once so retries with the same seed ask for the same scene.
func New(cfg config.Config, backend oai.Backend, layout *workspace.Layout, rng *rand.Rand) *Composer {
	return &Composer{cfg: cfg, backend: backend, layout: layout, prompt: buildPrompt(cfg, rng)}
}

// Prompt exposes the assembled image prompt.
func (c *Composer) Prompt() string { return c.prompt }

func buildPrompt(cfg config.Config, rng *rand.Rand) string {
	if cfg.BeautifulLady {
		return "Generate a beautiful image of a beautiful lady meditating. " +
			"It should be relaxing and be photorealistic. Remember: image only."
	}
	outputType := "meditation"
	if cfg.AffirmationsOnly {
		outputType = "affirmation"
	}
	var b strings.Builder
	b.WriteString("Image only.\n")
	fmt.Fprintf(&b, "Generate a beautiful image based on the %s topic '%s'.\n", outputType, cfg.Topic)
	b.WriteString("It should be relaxing and be photorealistic.")
	if rng.Float64() < 0.5 {
		b.WriteString(" It should include a beautiful person.")
	}
	if rng.Float64() < 0.5 {
		b.WriteString(" It should be in outer space.")
	} else if rng.Float64() < 0.5 {
		b.WriteString(" It should be under or on the ocean.")
	}
	if rng.Float64() < 0.5 {
		b.WriteString(" It should be in the style of a random famous painter.")
	} else {
		b.WriteString(" It should be in the style of a random famous artist.")
	}
	b.WriteString(" REMEMBER: image only.")
	return b.String()
}

// Compose generates the background image, overlays the banner, and writes
// the result to the working directory. Content-policy refusals surface as a
// terminal tagged error.
func (c *Composer) Compose(ctx context.Context) (string, error) {
	data, err := c.backend.Image(ctx, c.prompt)
	if err != nil {
		return "", stage.Fail(stage.Image, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", stage.Fail(stage.Image, fmt.Errorf("decode generated image: %w", err))
	}

	banner := Banner{
		Position:    c.cfg.BannerPosition,
		HeightRatio: c.cfg.BannerHeightRatio,
		Opacity:     c.cfg.BannerOpacity,
		MaxWords:    c.cfg.BannerMaxWords,
	}
	composed := banner.Overlay(img, c.cfg.Topic)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, composed, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", stage.Fail(stage.Image, fmt.Errorf("encode composed image: %w", err))
	}
	path := c.layout.ImageFile()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", stage.Fail(stage.Image, fmt.Errorf("write composed image: %w", err))
	}
	return path, nil
}
