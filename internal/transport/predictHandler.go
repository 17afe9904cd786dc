package transport

import (
	"context"
	"net/http"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
	"github.com/ds124wfegd/ocr-ml-backend/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *PredictHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, entity.HealthResponse{Status: "ok"})
}

func (h *PredictHandler) Predict(c *gin.Context) {
	// predictions run to completion even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())

	model, err := h.models.Model(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req entity.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Error("prediction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed: " + err.Error()})
		return
	}

	c.Set(middleware.TaskCountKey, len(req.Tasks))
	logrus.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"tasks":      len(req.Tasks),
		"bytes":      c.Request.ContentLength,
	}).Info("prediction request received")

	results := model.Predict(ctx, req.Tasks)
	c.JSON(http.StatusOK, entity.PredictResponse{Results: results})
}
