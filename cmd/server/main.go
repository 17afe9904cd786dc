// entry point to the OCR prediction backend
package main

import (
	"io"
	"os"

	"github.com/ds124wfegd/ocr-ml-backend/config"
	"github.com/ds124wfegd/ocr-ml-backend/internal/appServer"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	logFile := setupLogging(cfg.Log)
	if logFile != nil {
		defer logFile.Close()
	}

	appServer.NewServer(cfg)
}

// setupLogging applies level and format and tees output into the log file.
func setupLogging(cfg config.LogConfig) io.Closer {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.WithError(err).Warn("unknown log level, keeping info")
	}

	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		return nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.WithError(err).Warn("cannot open log file, logging to stdout only")
		return nil
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	return f
}
