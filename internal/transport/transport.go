package transport

import (
	"fmt"
	"net/http"

	"github.com/ds124wfegd/ocr-ml-backend/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const requestIDKey = middleware.RequestIDKey

func InitRoutes(predictHandler *PredictHandler) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logrus.WithField("panic", recovered).Error("server error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
	}))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "404 Not Found: " + c.Request.URL.Path})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "405 Method Not Allowed: " + c.Request.Method})
	})

	router.GET("/health", predictHandler.Health)
	router.POST("/predict", predictHandler.Predict)

	return router
}
