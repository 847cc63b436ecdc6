package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// NERProvider runs an ONNX token-classification model and decodes BIO
// labels into character spans. The model bundle directory holds
// ner.onnx, label_map.json, and tokenizer/vocab.txt.
type NERProvider struct {
	session   *ort.AdvancedSession
	tokenizer *wordPieceTokenizer
	labels    []string
	seqLen    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// NewNERProvider initializes the ONNX session and tokenizer.
func NewNERProvider(bundleDir string, seqLen int) (*NERProvider, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}
	if seqLen <= 0 {
		seqLen = 256
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

	modelPath := filepath.Join(bundleDir, "ner.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	labels, err := loadLabelMap(filepath.Join(bundleDir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	tokenizer, err := loadWordPieceTokenizer(filepath.Join(bundleDir, "tokenizer", "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(len(labels))))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &NERProvider{
		session:       session,
		tokenizer:     tokenizer,
		labels:        labels,
		seqLen:        seqLen,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

func (p *NERProvider) Name() string { return "ner" }

// Detect runs inference and assembles contiguous same-category tokens
// into span entities. Confidence is the mean token softmax probability.
func (p *NERProvider) Detect(ctx context.Context, text string) ([]entity.DetectedEntity, error) {
	if p == nil || p.session == nil {
		return nil, Unavailable(errors.New("ner model not initialized"))
	}
	if text == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, attn, offsets := p.tokenizer.encode(text, p.seqLen)

	p.mu.Lock()
	copy(p.inputIDs.GetData(), ids)
	copy(p.attentionMask.GetData(), attn)
	if err := p.session.Run(); err != nil {
		p.mu.Unlock()
		return nil, Unavailable(fmt.Errorf("onnx run: %w", err))
	}
	logits := make([]float32, len(p.output.GetData()))
	copy(logits, p.output.GetData())
	p.mu.Unlock()

	return p.decode(text, attn, offsets, logits), nil
}

type tokenLabel struct {
	category string
	begin    bool
	conf     float64
	offset   tokenOffset
}

func (p *NERProvider) decode(text string, attn []int64, offsets []tokenOffset, logits []float32) []entity.DetectedEntity {
	nLabels := len(p.labels)
	var run []tokenLabel
	var out []entity.DetectedEntity

	flush := func() {
		if len(run) == 0 {
			return
		}
		start := run[0].offset.Start
		end := run[len(run)-1].offset.End
		if start >= 0 && end > start && end <= len(text) {
			var sum float64
			for _, t := range run {
				sum += t.conf
			}
			out = append(out, entity.DetectedEntity{
				ID:         entity.NewID(),
				Modality:   entity.ModalityText,
				Category:   run[0].category,
				Confidence: sum / float64(len(run)),
				Span:       &entity.Span{Start: start, End: end},
				Source:     p.Name(),
				RawValue:   text[start:end],
			})
		}
		run = nil
	}

	for i := 0; i < p.seqLen; i++ {
		if attn[i] == 0 || offsets[i].Start < 0 {
			flush()
			continue
		}
		lbl, conf := argmaxSoftmax(logits[i*nLabels : (i+1)*nLabels])
		name := p.labels[lbl]
		category, begin, tagged := splitBIO(name)
		if !tagged {
			flush()
			continue
		}
		tok := tokenLabel{category: category, begin: begin, conf: conf, offset: offsets[i]}
		if len(run) > 0 && (begin || run[len(run)-1].category != category) {
			flush()
		}
		run = append(run, tok)
	}
	flush()
	return out
}

// splitBIO maps "B-PERSON"/"I-PERSON" to (PERSON, begin) and rejects "O".
func splitBIO(label string) (category string, begin bool, tagged bool) {
	switch {
	case strings.HasPrefix(label, "B-"):
		return strings.ToUpper(label[2:]), true, true
	case strings.HasPrefix(label, "I-"):
		return strings.ToUpper(label[2:]), false, true
	default:
		return "", false, false
	}
}

func argmaxSoftmax(logits []float32) (int, float64) {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	var denom float64
	maxLogit := float64(logits[best])
	for _, v := range logits {
		denom += math.Exp(float64(v) - maxLogit)
	}
	return best, 1.0 / denom
}

func loadLabelMap(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime shared
// library. ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common
// names/locations are probed.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// UnavailableText stands in for a text detector that failed to load, so the
// fusion layer exercises its degradation path instead of dereferencing nil.
type UnavailableText struct {
	Provider string
	Err      error
}

func (u UnavailableText) Name() string { return u.Provider }

func (u UnavailableText) Detect(context.Context, string) ([]entity.DetectedEntity, error) {
	return nil, Unavailable(u.Err)
}
