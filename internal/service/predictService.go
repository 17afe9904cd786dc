package service

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/classifier"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/kafka"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/labels"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/processor"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/region"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type PredictOptions struct {
	ModelVersion string
	// Control names of the labeling config; left out of the output when empty.
	RectangleFromName string
	TextAreaFromName  string
	ToName            string
	GCAfterTask       bool
}

type predictService struct {
	recognizer Recognizer
	processor  processor.ImageProcessor
	labels     *labels.Set
	producer   kafka.Producer
	opts       PredictOptions
}

func NewPredictService(recognizer Recognizer, processor processor.ImageProcessor, labels *labels.Set, producer kafka.Producer, opts PredictOptions) PredictService {
	return &predictService{
		recognizer: recognizer,
		processor:  processor,
		labels:     labels,
		producer:   producer,
		opts:       opts,
	}
}

func (s *predictService) ModelVersion() string {
	return s.opts.ModelVersion
}

// Predict never fails as a whole: a task that cannot be processed yields an
// empty result and the batch goes on.
func (s *predictService) Predict(ctx context.Context, tasks []entity.Task) []entity.PredictionResult {
	start := time.Now()
	batchID := uuid.NewString()
	log := logrus.WithField("batch_id", batchID)

	results := make([]entity.PredictionResult, 0, len(tasks))
	for i, task := range tasks {
		res, err := s.safePredictTask(ctx, task)
		if err != nil {
			log.WithError(err).WithField("task", i).Error("task processing failed")
			res = entity.EmptyResult(s.opts.ModelVersion)
		}
		results = append(results, res)

		if s.opts.GCAfterTask {
			debug.FreeOSMemory()
		}
	}

	elapsed := time.Since(start)
	log.WithFields(logrus.Fields{
		"tasks":   len(tasks),
		"seconds": fmt.Sprintf("%.2f", elapsed.Seconds()),
	}).Info("prediction batch processed")

	s.publish(ctx, batchID, results, elapsed)
	return results
}

// safePredictTask turns a panic in one task into that task's error.
func (s *predictService) safePredictTask(ctx context.Context, task entity.Task) (res entity.PredictionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("stack", string(debug.Stack())).Error("panic during task processing")
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return s.predictTask(ctx, task)
}

func (s *predictService) predictTask(ctx context.Context, task entity.Task) (entity.PredictionResult, error) {
	data, err := s.processor.DecodeBase64(task.Data.Image)
	if err != nil {
		return entity.PredictionResult{}, err
	}

	regions := task.Regions()
	if len(regions) == 0 {
		return s.predictImage(ctx, data)
	}
	return s.predictRegions(ctx, data, regions)
}

// predictImage recognizes the whole image and emits one annotation pair per line.
func (s *predictService) predictImage(ctx context.Context, data []byte) (entity.PredictionResult, error) {
	img, err := s.processor.Preprocess(data)
	if err != nil {
		return entity.PredictionResult{}, err
	}

	lines, err := s.recognizer.Recognize(ctx, img.Data)
	if err != nil {
		return entity.PredictionResult{}, err
	}
	if len(lines) == 0 {
		return entity.EmptyResult(s.opts.ModelVersion), nil
	}

	annotations := make([]entity.Annotation, 0, 2*len(lines))
	var sum float64
	for _, line := range lines {
		box := region.FromPolygon(line.Polygon[:], img.Width, img.Height)
		annotations = append(annotations, s.pair(uuid.NewString(), box, line.Text, line.Confidence)...)
		sum += line.Confidence
	}

	score := sum / float64(len(lines))
	return entity.PredictionResult{
		Result:       annotations,
		ModelVersion: s.opts.ModelVersion,
		Score:        &score,
	}, nil
}

// predictRegions recognizes every region separately and emits one pair per
// region that produced text, keeping the region's own geometry.
func (s *predictService) predictRegions(ctx context.Context, data []byte, regions []entity.RegionResult) (entity.PredictionResult, error) {
	img, err := s.processor.Decode(data)
	if err != nil {
		return entity.PredictionResult{}, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	annotations := []entity.Annotation{}
	var scores []float64
	valid := 0

	for i, r := range regions {
		rlog := logrus.WithFields(logrus.Fields{"region": i, "id": r.ID})

		rect, ok := region.ToCrop(r.Value, w, h)
		if !ok {
			rlog.WithError(entity.ErrInvalidCrop).Warn("region skipped")
			continue
		}
		valid++

		text, confidence, err := s.recognizeCrop(ctx, img, rect)
		if err != nil {
			rlog.WithError(err).Error("region processing failed")
			continue
		}
		if text == "" {
			continue
		}

		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		geometry := entity.Region{X: r.Value.X, Y: r.Value.Y, Width: r.Value.Width, Height: r.Value.Height}
		annotations = append(annotations, s.pair(id, geometry, text, confidence)...)
		scores = append(scores, confidence)
	}

	if valid == 0 {
		return entity.PredictionResult{}, fmt.Errorf("%w: %d regions given", entity.ErrNoRegions, len(regions))
	}

	score := mean(scores)
	return entity.PredictionResult{
		Result:       annotations,
		ModelVersion: s.opts.ModelVersion,
		Score:        &score,
	}, nil
}

// recognizeCrop returns the space-joined text of a crop and the mean line confidence.
func (s *predictService) recognizeCrop(ctx context.Context, img image.Image, rect image.Rectangle) (string, float64, error) {
	data, err := s.processor.Crop(img, rect)
	if err != nil {
		return "", 0, err
	}
	pre, err := s.processor.Preprocess(data)
	if err != nil {
		return "", 0, err
	}

	lines, err := s.recognizer.Recognize(ctx, pre.Data)
	if err != nil {
		return "", 0, err
	}
	if len(lines) == 0 {
		return "", 0, nil
	}

	texts := make([]string, 0, len(lines))
	confidences := make([]float64, 0, len(lines))
	for _, line := range lines {
		texts = append(texts, line.Text)
		confidences = append(confidences, line.Confidence)
	}
	return strings.Join(texts, " "), mean(confidences), nil
}

// pair builds the linked rectangle label and text area records for one span.
func (s *predictService) pair(id string, box entity.Region, text string, confidence float64) []entity.Annotation {
	label := s.labels.Label(classifier.Classify(text, confidence))

	value := entity.AnnotationValue{
		X:      box.X,
		Y:      box.Y,
		Width:  box.Width,
		Height: box.Height,
	}

	rect := value
	rect.RectangleLabels = []string{label}

	area := value
	area.Text = []string{text}
	score := confidence
	area.Score = &score

	return []entity.Annotation{
		{ID: id, FromName: s.opts.RectangleFromName, ToName: s.opts.ToName, Type: entity.AnnotationRectangleLabels, Value: rect},
		{ID: id, FromName: s.opts.TextAreaFromName, ToName: s.opts.ToName, Type: entity.AnnotationTextArea, Value: area},
	}
}

func (s *predictService) publish(ctx context.Context, batchID string, results []entity.PredictionResult, elapsed time.Duration) {
	event := entity.PredictionEvent{
		BatchID:      batchID,
		Tasks:        len(results),
		DurationMs:   elapsed.Milliseconds(),
		ModelVersion: s.opts.ModelVersion,
	}
	var scores []float64
	for _, r := range results {
		if len(r.Result) > 0 {
			event.Annotated++
		}
		if r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}
	event.MeanScore = mean(scores)

	if err := s.producer.SendMessage(ctx, batchID, event); err != nil {
		logrus.WithError(err).WithField("batch_id", batchID).Warn("failed to publish prediction event")
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
