package mitigate

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// PixelProvider performs the pixel-level edits the image mitigator
// dispatches to. Implementations may fail on individual operations; the
// mitigator owns the fallback chain, a provider never falls back itself.
type PixelProvider interface {
	Blur(img draw.Image, r entity.Rect, kernel int) error
	Inpaint(img draw.Image, r entity.Rect) error
	Mosaic(img draw.Image, r entity.Rect, block int) error
	RenderText(img draw.Image, r entity.Rect, text string) error
}

// ErrNoContext means a region has too little surrounding pixel data to
// synthesize a plausible fill.
var ErrNoContext = errors.New("insufficient surrounding context")

// StdProvider implements the pixel edits in pure Go.
type StdProvider struct{}

func clampRect(img image.Image, r entity.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H).Intersect(img.Bounds())
}

// Blur applies a three-pass box blur over the region, which approximates a
// Gaussian closely enough for de-identification. The kernel must be odd.
func (StdProvider) Blur(img draw.Image, r entity.Rect, kernel int) error {
	b := clampRect(img, r)
	if b.Empty() {
		return fmt.Errorf("blur region %+v outside image bounds", r)
	}
	if kernel < 3 || kernel%2 == 0 {
		return fmt.Errorf("blur kernel %d must be odd and at least 3", kernel)
	}
	radius := kernel / 2
	for pass := 0; pass < 3; pass++ {
		boxBlurPass(img, b, radius)
	}
	return nil
}

func boxBlurPass(img draw.Image, b image.Rectangle, radius int) {
	src := image.NewRGBA(b)
	draw.Draw(src, b, img, b.Min, draw.Src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var sr, sg, sb, sa, n uint32
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					px, py := x+dx, y+dy
					if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
						continue
					}
					cr, cg, cb, ca := src.At(px, py).RGBA()
					sr += cr >> 8
					sg += cg >> 8
					sb += cb >> 8
					sa += ca >> 8
					n++
				}
			}
			img.Set(x, y, color.RGBA{
				R: uint8(sr / n),
				G: uint8(sg / n),
				B: uint8(sb / n),
				A: uint8(sa / n),
			})
		}
	}
}

// Mosaic replaces each block of the region with its average color.
func (StdProvider) Mosaic(img draw.Image, r entity.Rect, block int) error {
	b := clampRect(img, r)
	if b.Empty() {
		return fmt.Errorf("mosaic region %+v outside image bounds", r)
	}
	if block < 2 {
		return fmt.Errorf("mosaic block %d too small", block)
	}
	for y := b.Min.Y; y < b.Max.Y; y += block {
		for x := b.Min.X; x < b.Max.X; x += block {
			cell := image.Rect(x, y, x+block, y+block).Intersect(b)
			avg := averageColor(img, cell)
			draw.Draw(img, cell, image.NewUniform(avg), image.Point{}, draw.Src)
		}
	}
	return nil
}

// Inpaint fills the region with the average color of a one-pixel ring around
// it. Regions with no in-bounds ring pixels cannot be filled plausibly and
// return ErrNoContext.
func (StdProvider) Inpaint(img draw.Image, r entity.Rect) error {
	b := clampRect(img, r)
	if b.Empty() {
		return fmt.Errorf("inpaint region %+v outside image bounds", r)
	}
	ring := b.Inset(-1).Intersect(img.Bounds())
	var sr, sg, sb, n uint32
	for y := ring.Min.Y; y < ring.Max.Y; y++ {
		for x := ring.Min.X; x < ring.Max.X; x++ {
			if (image.Point{X: x, Y: y}).In(b) {
				continue
			}
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += cr >> 8
			sg += cg >> 8
			sb += cb >> 8
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("inpaint region %+v: %w", r, ErrNoContext)
	}
	fill := color.RGBA{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n), A: 255}
	draw.Draw(img, b, image.NewUniform(fill), image.Point{}, draw.Src)
	return nil
}

// RenderText fills the region with the surrounding background color and
// draws replacement text over it. Regions too small for a single glyph of
// the fixed-size face cannot be rendered and must fall back.
func (StdProvider) RenderText(img draw.Image, r entity.Rect, text string) error {
	b := clampRect(img, r)
	if b.Empty() {
		return fmt.Errorf("text region %+v outside image bounds", r)
	}
	face := basicfont.Face7x13
	if b.Dx() < face.Advance || b.Dy() < face.Height {
		return fmt.Errorf("region %dx%d too small for glyphs", b.Dx(), b.Dy())
	}

	bg := averageColor(img, b)
	draw.Draw(img, b, image.NewUniform(bg), image.Point{}, draw.Src)

	// Trim to what fits.
	maxChars := b.Dx() / face.Advance
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	fg := contrastColor(bg)
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot: fixed.P(
			b.Min.X+(b.Dx()-len(text)*face.Advance)/2,
			b.Min.Y+(b.Dy()+face.Ascent)/2,
		),
	}
	d.DrawString(text)
	return nil
}

func averageColor(img image.Image, b image.Rectangle) color.RGBA {
	var sr, sg, sb, n uint32
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += cr >> 8
			sg += cg >> 8
			sb += cb >> 8
			n++
		}
	}
	if n == 0 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n), A: 255}
}

func contrastColor(bg color.RGBA) color.RGBA {
	// Perceived luminance drives black-on-light vs white-on-dark.
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum > 128 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}
