package explain

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"git.sr.ht/~sbinet/gg"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// WriteOverlay draws the authoritative rectangles and their mitigation
// labels onto a copy of the sanitized image and saves it as PNG. Returns
// the path it wrote.
func WriteOverlay(path string, img image.Image, ents []entity.AuthoritativeEntity, actions []entity.MitigationAction) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("create dirs: %w", err)
	}

	strategies := make(map[string]entity.Strategy, len(actions))
	for _, a := range actions {
		strategies[a.EntityID] = a.Strategy
	}

	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(2)
	for _, e := range ents {
		if e.Rect == nil {
			continue
		}
		strategy := strategies[e.ID]
		if strategy == entity.StrategyBlur {
			dc.SetRGB(0, 1, 0)
		} else {
			dc.SetRGB(1, 0, 0)
		}
		dc.DrawRectangle(float64(e.Rect.X), float64(e.Rect.Y), float64(e.Rect.W), float64(e.Rect.H))
		dc.Stroke()

		label := fmt.Sprintf("%s (%s)", e.Category, strategy)
		y := float64(e.Rect.Y) - 4
		if y < 10 {
			y = float64(e.Rect.Y+e.Rect.H) + 12
		}
		dc.DrawString(label, float64(e.Rect.X), y)
	}

	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("save overlay: %w", err)
	}
	return path, nil
}
