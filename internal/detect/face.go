package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	xdraw "golang.org/x/image/draw"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// Fixed input raster for the single-shot face model.
const (
	faceInputW = 320
	faceInputH = 240
)

// FaceONNXProvider wraps a single-shot ONNX face detector that emits
// per-anchor scores and relative corner boxes. Detections are mapped back
// to original pixel coordinates and de-duplicated with NMS.
type FaceONNXProvider struct {
	session   *ort.DynamicAdvancedSession
	input     *ort.Tensor[float32]
	threshold float64

	mu sync.Mutex
}

// NewFaceONNXProvider loads face.onnx from the bundle directory.
func NewFaceONNXProvider(bundleDir string, threshold float64) (*FaceONNXProvider, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}
	if threshold <= 0 {
		threshold = 0.7
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(bundleDir, "face.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, faceInputH, faceInputW))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"scores", "boxes"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &FaceONNXProvider{session: session, input: input, threshold: threshold}, nil
}

func (p *FaceONNXProvider) Name() string { return "face" }

// Detect returns FACE rectangles in original image coordinates.
func (p *FaceONNXProvider) Detect(ctx context.Context, r Raster) ([]entity.DetectedEntity, error) {
	if p == nil || p.session == nil {
		return nil, Unavailable(errors.New("face model not initialized"))
	}
	if r.Image == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := r.Image.Bounds()
	p.mu.Lock()
	fillFaceInput(p.input.GetData(), r.Image)

	outputs := []ort.Value{nil, nil}
	if err := p.session.Run([]ort.Value{p.input}, outputs); err != nil {
		p.mu.Unlock()
		return nil, Unavailable(fmt.Errorf("onnx run: %w", err))
	}
	scoresT, okS := outputs[0].(*ort.Tensor[float32])
	boxesT, okB := outputs[1].(*ort.Tensor[float32])
	if !okS || !okB {
		p.mu.Unlock()
		return nil, errors.New("unexpected face model output types")
	}
	scores := append([]float32(nil), scoresT.GetData()...)
	boxes := append([]float32(nil), boxesT.GetData()...)
	scoresT.Destroy()
	boxesT.Destroy()
	p.mu.Unlock()

	return p.collect(scores, boxes, bounds), nil
}

type faceBox struct {
	rect  entity.Rect
	score float64
}

// collect thresholds per-anchor face probabilities, maps relative corner
// boxes back to pixels, and suppresses overlapping duplicates.
func (p *FaceONNXProvider) collect(scores, boxes []float32, bounds image.Rectangle) []entity.DetectedEntity {
	n := len(scores) / 2
	width := bounds.Dx()
	height := bounds.Dy()

	var kept []faceBox
	for i := 0; i < n && (i*4+3) < len(boxes); i++ {
		score := float64(scores[i*2+1]) // index 1 is the face class
		if score < p.threshold {
			continue
		}
		x1 := clampF(float64(boxes[i*4+0])) * float64(width)
		y1 := clampF(float64(boxes[i*4+1])) * float64(height)
		x2 := clampF(float64(boxes[i*4+2])) * float64(width)
		y2 := clampF(float64(boxes[i*4+3])) * float64(height)
		rect := entity.Rect{
			X: bounds.Min.X + int(x1),
			Y: bounds.Min.Y + int(y1),
			W: int(x2 - x1),
			H: int(y2 - y1),
		}
		if !rect.Valid() {
			continue
		}
		kept = append(kept, faceBox{rect: rect, score: score})
	}

	kept = nms(kept, 0.4)

	out := make([]entity.DetectedEntity, 0, len(kept))
	for _, fb := range kept {
		rect := fb.rect
		out = append(out, entity.DetectedEntity{
			ID:         entity.NewID(),
			Modality:   entity.ModalityImage,
			Category:   "FACE",
			Confidence: fb.score,
			Rect:       &rect,
			Source:     p.Name(),
		})
	}
	return out
}

func nms(boxes []faceBox, iouLimit float64) []faceBox {
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].score > boxes[j].score })
	var kept []faceBox
	for _, b := range boxes {
		suppressed := false
		for _, k := range kept {
			if b.rect.IoU(k.rect) > iouLimit {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

// fillFaceInput resizes the image to the model raster and writes normalized
// CHW planes ((v-127)/128) into dst.
func fillFaceInput(dst []float32, img image.Image) {
	scaled := image.NewRGBA(image.Rect(0, 0, faceInputW, faceInputH))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	plane := faceInputW * faceInputH
	for y := 0; y < faceInputH; y++ {
		for x := 0; x < faceInputW; x++ {
			i := scaled.PixOffset(x, y)
			idx := y*faceInputW + x
			dst[0*plane+idx] = (float32(scaled.Pix[i+0]) - 127) / 128
			dst[1*plane+idx] = (float32(scaled.Pix[i+1]) - 127) / 128
			dst[2*plane+idx] = (float32(scaled.Pix[i+2]) - 127) / 128
		}
	}
}

func clampF(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// UnavailableFace stands in for a face detector that failed to load.
type UnavailableFace struct {
	Err error
}

func (u UnavailableFace) Name() string { return "face" }

func (u UnavailableFace) Detect(context.Context, Raster) ([]entity.DetectedEntity, error) {
	return nil, Unavailable(u.Err)
}
