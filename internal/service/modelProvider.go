package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
	"github.com/sirupsen/logrus"
)

// LoadFunc builds the model. It is called until it succeeds once.
type LoadFunc func(ctx context.Context) (PredictService, Recognizer, error)

type modelProvider struct {
	mu         sync.Mutex
	load       LoadFunc
	model      PredictService
	recognizer Recognizer
}

func NewModelProvider(load LoadFunc) ModelProvider {
	return &modelProvider{load: load}
}

func (p *modelProvider) Model(ctx context.Context) (PredictService, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		return p.model, nil
	}

	model, recognizer, err := p.load(ctx)
	if err != nil {
		logrus.WithError(err).Error("model initialization failed")
		return nil, fmt.Errorf("%w: %v", entity.ErrModelLoad, err)
	}

	p.model, p.recognizer = model, recognizer
	logrus.WithField("model_version", model.ModelVersion()).Info("model initialized")
	return p.model, nil
}

// Warmup loads the model ahead of the first request. Failure is not fatal;
// the next request retries.
func (p *modelProvider) Warmup(ctx context.Context) {
	_, _ = p.Model(ctx)
}

func (p *modelProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recognizer == nil {
		return nil
	}
	err := p.recognizer.Close()
	p.model, p.recognizer = nil, nil
	return err
}
