// launching the server, OCR model, kafka
package appServer

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/ocr-ml-backend/config"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/kafka"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/memlimit"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/processor"
	"github.com/ds124wfegd/ocr-ml-backend/internal/service"
	"github.com/ds124wfegd/ocr-ml-backend/internal/transport"
	"github.com/gin-gonic/gin"

	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       time.Minute, // task batches carry base64 images
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		ErrorLog:          log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {
	if err := memlimit.Apply(cfg.Memory.LimitMB); err != nil {
		logrus.WithError(err).Warn("failed to set memory limit")
	} else if cfg.Memory.LimitMB > 0 {
		logrus.Infof("memory limit set to %dMB", cfg.Memory.LimitMB)
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	imgProcessor := processor.NewImageProcessor(cfg.Image.MaxSide, cfg.Image.JPEGQuality)
	models := service.NewModelProvider(NewModelLoader(cfg, imgProcessor, producer))
	predictHandler := transport.NewPredictHandler(models)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	models.Warmup(context.Background())

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(predictHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("port", cfg.Server.Port).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
	if err := models.Close(); err != nil {
		logrus.Errorf("error occured on model closing: %s", err.Error())
	}
	if err := producer.Close(); err != nil {
		logrus.Errorf("error occured on kafka producer closing: %s", err.Error())
	}
}
