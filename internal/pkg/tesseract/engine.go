// Package tesseract implements text line recognition on top of gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/region"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Languages      []string
	TessdataPrefix string
	PageSegMode    int
	Whitelist      string
}

// Engine owns a single gosseract client. The client keeps the trained data
// loaded between calls and is not safe for concurrent use, hence the mutex.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	name   string
}

func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"chi_sim"}
	}

	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}

	e := &Engine{client: client, name: "tesseract " + strings.Join(cfg.Languages, "+")}

	// Tesseract loads trained data lazily; run once so a missing language fails here.
	if err := e.warmup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("warm up %s: %w", e.name, err)
	}

	logrus.WithFields(logrus.Fields{
		"engine":  e.name,
		"version": client.Version(),
	}).Info("OCR engine loaded")

	return e, nil
}

func (e *Engine) Name() string { return e.name }

// Recognize returns the text lines found in an encoded image.
func (e *Engine) Recognize(ctx context.Context, data []byte) ([]entity.RecognitionLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", entity.ErrRecognition, err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRecognition, err)
	}

	lines := make([]entity.RecognitionLine, 0, len(boxes))
	for _, b := range boxes {
		text := normalizeText(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, entity.RecognitionLine{
			Polygon:    region.Quad(b.Box),
			Text:       text,
			Confidence: clamp01(b.Confidence / 100.0),
		})
	}
	return lines, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

func (e *Engine) warmup() error {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return err
	}
	_, err := e.client.Text()
	return err
}

// normalizeText collapses whitespace and line breaks.
func normalizeText(t string) string {
	return strings.Join(strings.Fields(t), " ")
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
