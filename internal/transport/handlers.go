package transport

import (
	"github.com/ds124wfegd/ocr-ml-backend/internal/service"
)

type PredictHandler struct {
	models service.ModelProvider
}

func NewPredictHandler(models service.ModelProvider) *PredictHandler {
	return &PredictHandler{models: models}
}
