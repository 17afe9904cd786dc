package service

import (
	"context"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
)

// Recognizer is the OCR engine: encoded image in, text lines out.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) ([]entity.RecognitionLine, error)
	Close() error
}

type PredictService interface {
	Predict(ctx context.Context, tasks []entity.Task) []entity.PredictionResult
	ModelVersion() string
}

// ModelProvider hands out the shared model, loading it on first use.
type ModelProvider interface {
	Model(ctx context.Context) (PredictService, error)
	Warmup(ctx context.Context)
	Close() error
}
