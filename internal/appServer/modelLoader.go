package appServer

import (
	"context"

	"github.com/ds124wfegd/ocr-ml-backend/config"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/kafka"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/labels"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/processor"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/tesseract"
	"github.com/ds124wfegd/ocr-ml-backend/internal/service"
)

// NewModelLoader builds the tesseract engine, the labels and the prediction
// pipeline on top of them.
func NewModelLoader(cfg *config.Config, imgProcessor processor.ImageProcessor, producer kafka.Producer) service.LoadFunc {
	return func(context.Context) (service.PredictService, service.Recognizer, error) {
		engine, err := tesseract.NewEngine(tesseract.Config{
			Languages:      cfg.Model.Languages,
			TessdataPrefix: cfg.Model.TessdataPrefix,
			PageSegMode:    cfg.Model.PageSegMode,
			Whitelist:      cfg.Model.Whitelist,
		})
		if err != nil {
			return nil, nil, err
		}

		set := labels.Load(cfg.Labels.Path, cfg.Labels.Watch)

		version := cfg.Model.Version
		if version == "" {
			version = engine.Name()
		}

		model := service.NewPredictService(engine, imgProcessor, set, producer, service.PredictOptions{
			ModelVersion:      version,
			RectangleFromName: cfg.Labeling.RectangleFromName,
			TextAreaFromName:  cfg.Labeling.TextAreaFromName,
			ToName:            cfg.Labeling.ToName,
			GCAfterTask:       cfg.Model.GCAfterTask,
		})
		return model, engine, nil
	}
}
