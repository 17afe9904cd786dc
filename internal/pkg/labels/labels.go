// Package labels maps text types to the display strings sent to the labeling tool.
package labels

import (
	"errors"
	"os"
	"sync"

	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/classifier"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var defaults = map[classifier.TextType]string{
	classifier.Default:   "文本",
	classifier.Title:     "标题",
	classifier.Paragraph: "段落",
	classifier.Table:     "表格",
	classifier.Number:    "数字",
	classifier.Date:      "日期",
}

// Set is safe for concurrent use; a watched file may replace it at any time.
type Set struct {
	mu     sync.RWMutex
	labels map[classifier.TextType]string
}

func Defaults() *Set {
	return &Set{labels: copyLabels(defaults)}
}

// Label returns the display string for t, falling back to the built-in default.
func (s *Set) Label(t classifier.TextType) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.labels[t]; ok {
		return l
	}
	if l, ok := defaults[t]; ok {
		return l
	}
	return defaults[classifier.Default]
}

func (s *Set) replace(labels map[classifier.TextType]string) {
	s.mu.Lock()
	s.labels = labels
	s.mu.Unlock()
}

// Load reads {"labels": {...}} from a JSON file. A missing or broken file
// leaves the defaults in place. With watch set, later edits are applied live.
func Load(path string, watch bool) *Set {
	set := Defaults()
	if path == "" {
		return set
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logrus.WithField("path", path).Warn("labels file not found, using default labels")
		return set
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		logrus.WithError(err).WithField("path", path).Error("failed to read labels file, using default labels")
		return set
	}
	set.replace(fromViper(v))
	logrus.WithField("path", path).Info("labels loaded")

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			set.replace(fromViper(v))
			logrus.WithFields(logrus.Fields{"path": e.Name, "op": e.Op.String()}).Info("labels reloaded")
		})
		v.WatchConfig()
	}
	return set
}

func fromViper(v *viper.Viper) map[classifier.TextType]string {
	if !v.IsSet("labels") {
		return copyLabels(defaults)
	}
	out := make(map[classifier.TextType]string, len(classifier.Types))
	for _, t := range classifier.Types {
		if l := v.GetString("labels." + string(t)); l != "" {
			out[t] = l
		}
	}
	for k := range v.GetStringMapString("labels") {
		if _, ok := out[classifier.TextType(k)]; !ok {
			if _, known := defaults[classifier.TextType(k)]; !known {
				logrus.WithField("key", k).Warn("unknown text type in labels file")
			}
		}
	}
	return out
}

func copyLabels(in map[classifier.TextType]string) map[classifier.TextType]string {
	out := make(map[classifier.TextType]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
