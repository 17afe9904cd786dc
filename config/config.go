// Initializing common application configuration
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Labels   LabelsConfig   `mapstructure:"labels"`
	Labeling LabelingConfig `mapstructure:"labeling"`
	Image    ImageConfig    `mapstructure:"image"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Idle_timeout time.Duration `mapstructure:"idle_timeout"`
	Mode         string        `mapstructure:"mode"`
}

type ModelConfig struct {
	Version        string   `mapstructure:"version"`
	Languages      []string `mapstructure:"languages"`
	TessdataPrefix string   `mapstructure:"tessdata_prefix"`
	PageSegMode    int      `mapstructure:"page_seg_mode"`
	Whitelist      string   `mapstructure:"whitelist"`
	GCAfterTask    bool     `mapstructure:"gc_after_task"`
}

type LabelsConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// LabelingConfig holds the control names of the labeling project.
type LabelingConfig struct {
	RectangleFromName string `mapstructure:"rectangle_from_name"`
	TextAreaFromName  string `mapstructure:"textarea_from_name"`
	ToName            string `mapstructure:"to_name"`
}

type ImageConfig struct {
	MaxSide     int `mapstructure:"max_side"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

type MemoryConfig struct {
	LimitMB int64 `mapstructure:"limit_mb"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "9090")
	v.SetDefault("server.timeout", 10*time.Minute)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.mode", "release")

	v.SetDefault("model.version", "Tesseract Lightweight Chinese")
	v.SetDefault("model.languages", []string{"chi_sim"})
	v.SetDefault("model.page_seg_mode", 3)
	v.SetDefault("model.gc_after_task", true)

	v.SetDefault("labels.path", "./config/labels.json")
	v.SetDefault("labels.watch", true)

	v.SetDefault("image.max_side", 2000)
	v.SetDefault("image.jpeg_quality", 95)

	v.SetDefault("memory.limit_mb", 800)

	v.SetDefault("kafka.topic", "ocr-predictions")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "ocr_server.log")
}

// LoadConfig reads ./config/config.yaml when present. Every key can be
// overridden by an OCR_ prefixed variable (OCR_MODEL_VERSION) and the
// port also by PORT.
func LoadConfig() (*viper.Viper, error) {
	return load("./config")
}

func load(paths ...string) (*viper.Viper, error) {
	viperInstance := viper.New()

	for _, p := range paths {
		viperInstance.AddConfigPath(p)
	}
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	viperInstance.SetEnvPrefix("OCR")
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()
	if err := viperInstance.BindEnv("server.port", "PORT", "OCR_SERVER_PORT"); err != nil {
		return nil, err
	}

	err := viperInstance.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
