package imagegen

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Banner describes the semi-transparent title strip drawn over the
// background image.
type Banner struct {
	Position    string  // config.BannerTop or config.BannerBottom
	HeightRatio float64 // strip height as a fraction of image height
	Opacity     float64 // 0 transparent .. 1 opaque
	MaxWords    int     // title word cap
}

// Title derives the banner text from the topic: the first MaxWords words,
// title-cased.
func (b Banner) Title(topic string) string {
	words := strings.Fields(topic)
	if b.MaxWords > 0 && len(words) > b.MaxWords {
		words = words[:b.MaxWords]
	}
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
		}
	}
	return strings.Join(words, " ")
}

// Overlay returns a copy of img with the banner strip and centered title.
func (b Banner) Overlay(img image.Image, topic string) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	stripH := int(float64(bounds.Dy()) * b.HeightRatio)
	if stripH <= 0 {
		return out
	}
	stripTop := bounds.Min.Y
	if b.Position != "top" {
		stripTop = bounds.Max.Y - stripH
	}
	strip := image.Rect(bounds.Min.X, stripTop, bounds.Max.X, stripTop+stripH)

	alpha := uint8(clamp01(b.Opacity) * 255)
	draw.Draw(out, strip, image.NewUniform(color.NRGBA{A: alpha}), image.Point{}, draw.Over)

	title := b.Title(topic)
	if title == "" {
		return out
	}
	b.drawTitle(out, strip, title)
	return out
}

// drawTitle rasterizes the title with the basic bitmap face onto a small
// canvas, then scales it up to roughly half the strip height so the text
// stays crisp-edged at video resolution.
func (b Banner) drawTitle(dst *image.RGBA, strip image.Rectangle, title string) {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, title).Ceil()
	textH := face.Metrics().Height.Ceil()
	if textW == 0 || textH == 0 {
		return
	}

	canvas := image.NewRGBA(image.Rect(0, 0, textW, textH))
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(title)

	scale := strip.Dy() / 2 / textH
	if scale < 1 {
		scale = 1
	}
	scaledW, scaledH := textW*scale, textH*scale
	if scaledW > strip.Dx() {
		scaledW = strip.Dx()
		scaledH = scaledW * textH / textW
	}
	x := strip.Min.X + (strip.Dx()-scaledW)/2
	y := strip.Min.Y + (strip.Dy()-scaledH)/2
	target := image.Rect(x, y, x+scaledW, y+scaledH)
	xdraw.NearestNeighbor.Scale(dst, target, canvas, canvas.Bounds(), xdraw.Over, nil)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
