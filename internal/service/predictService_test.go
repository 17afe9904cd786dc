package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/kafka"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/labels"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/processor"
	"github.com/ds124wfegd/ocr-ml-backend/internal/pkg/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "test-ocr"

// fakeRecognizer answers calls in order; the last answer repeats.
type fakeRecognizer struct {
	mu      sync.Mutex
	answers []fakeAnswer
	sizes   []image.Point
	calls   int
	panicAt int // 1-based call that panics
}

type fakeAnswer struct {
	lines []entity.RecognitionLine
	err   error
}

func (f *fakeRecognizer) Recognize(_ context.Context, data []byte) ([]entity.RecognitionLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		f.sizes = append(f.sizes, image.Pt(cfg.Width, cfg.Height))
	}

	i := min(f.calls, len(f.answers)-1)
	f.calls++
	if f.calls == f.panicAt {
		panic("decoder index out of range")
	}
	if i < 0 {
		return nil, nil
	}
	return f.answers[i].lines, f.answers[i].err
}

func (f *fakeRecognizer) Close() error { return nil }

// recordingProducer keeps every message it is asked to send.
type recordingProducer struct {
	messages []interface{}
}

func (p *recordingProducer) SendMessage(_ context.Context, _ string, message interface{}) error {
	p.messages = append(p.messages, message)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func newTestService(rec Recognizer, producer kafka.Producer) PredictService {
	if producer == nil {
		producer = kafka.NewProducer(nil, "")
	}
	return NewPredictService(
		rec,
		processor.NewImageProcessor(processor.DefaultMaxSide, processor.DefaultJPEGQuality),
		labels.Defaults(),
		producer,
		PredictOptions{ModelVersion: testVersion, ToName: "image", RectangleFromName: "bbox", TextAreaFromName: "transcription"},
	)
}

func line(text string, conf float64, r image.Rectangle) entity.RecognitionLine {
	return entity.RecognitionLine{Polygon: region.Quad(r), Text: text, Confidence: conf}
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// rotatedJPEGBase64 encodes a w x h JPEG tagged with EXIF orientation 6
// (stored sideways, displayed rotated 90 degrees clockwise).
func rotatedJPEGBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	jpg := buf.Bytes()

	exif := []byte("Exif\x00\x00")
	exif = append(exif,
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	)
	size := len(exif) + 2

	out := append([]byte{}, jpg[:2]...)
	out = append(out, 0xff, 0xe1, byte(size>>8), byte(size))
	out = append(out, exif...)
	out = append(out, jpg[2:]...)
	return base64.StdEncoding.EncodeToString(out)
}

func rectangle(id string, x, y, w, h float64) entity.RegionResult {
	return entity.RegionResult{ID: id, Type: entity.RegionTypeRectangle, Value: entity.Region{X: x, Y: y, Width: w, Height: h}}
}

func taskWithRegions(img string, regions ...entity.RegionResult) entity.Task {
	return entity.Task{
		Data:        entity.TaskData{Image: img},
		Predictions: []entity.TaskPrediction{{Result: regions}},
	}
}

func TestPredictWholeImage(t *testing.T) {
	rec := &fakeRecognizer{answers: []fakeAnswer{{lines: []entity.RecognitionLine{
		line("年度报告", 0.9, image.Rect(100, 50, 300, 100)),
		line("12345", 0.7, image.Rect(0, 0, 100, 25)),
	}}}}
	svc := newTestService(rec, nil)

	results := svc.Predict(context.Background(), []entity.Task{{Data: entity.TaskData{Image: pngBase64(t, 1000, 500)}}})

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, testVersion, res.ModelVersion)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 0.8, *res.Score, 1e-9)
	require.Len(t, res.Result, 4)

	rect, area := res.Result[0], res.Result[1]
	assert.Equal(t, entity.AnnotationRectangleLabels, rect.Type)
	assert.Equal(t, entity.AnnotationTextArea, area.Type)
	assert.Equal(t, rect.ID, area.ID)
	assert.NotEmpty(t, rect.ID)
	assert.Equal(t, "bbox", rect.FromName)
	assert.Equal(t, "transcription", area.FromName)
	assert.Equal(t, "image", rect.ToName)

	assert.Equal(t, []string{"标题"}, rect.Value.RectangleLabels)
	assert.Equal(t, []string{"年度报告"}, area.Value.Text)
	require.NotNil(t, area.Value.Score)
	assert.InDelta(t, 0.9, *area.Value.Score, 1e-9)
	assert.Nil(t, rect.Value.Score)

	assert.InDelta(t, 10.0, rect.Value.X, 1e-9)
	assert.InDelta(t, 10.0, rect.Value.Y, 1e-9)
	assert.InDelta(t, 20.0, rect.Value.Width, 1e-9)
	assert.InDelta(t, 10.0, rect.Value.Height, 1e-9)
	assert.Equal(t, rect.Value.X, area.Value.X)
	assert.Equal(t, rect.Value.Height, area.Value.Height)

	assert.Equal(t, []string{"数字"}, res.Result[2].Value.RectangleLabels)
	assert.NotEqual(t, rect.ID, res.Result[2].ID)
}

func TestPredictWholeImageUsesDownscaledSize(t *testing.T) {
	// lines are reported in the 2000x1000 space of the downscaled image
	rec := &fakeRecognizer{answers: []fakeAnswer{{lines: []entity.RecognitionLine{
		line("合计", 0.6, image.Rect(200, 100, 400, 200)),
	}}}}
	svc := newTestService(rec, nil)

	results := svc.Predict(context.Background(), []entity.Task{{Data: entity.TaskData{Image: pngBase64(t, 4000, 2000)}}})

	require.Len(t, rec.sizes, 1)
	assert.Equal(t, image.Pt(2000, 1000), rec.sizes[0])
	require.Len(t, results[0].Result, 2)
	v := results[0].Result[0].Value
	assert.InDelta(t, 10.0, v.X, 1e-9)
	assert.InDelta(t, 10.0, v.Y, 1e-9)
	assert.Equal(t, []string{"表格"}, v.RectangleLabels)
}

func TestPredictWholeImageNoText(t *testing.T) {
	svc := newTestService(&fakeRecognizer{answers: []fakeAnswer{{}}}, nil)

	results := svc.Predict(context.Background(), []entity.Task{{Data: entity.TaskData{Image: pngBase64(t, 50, 50)}}})

	require.Len(t, results, 1)
	assert.NotNil(t, results[0].Result)
	assert.Empty(t, results[0].Result)
	assert.Nil(t, results[0].Score)
}

func TestPredictRegions(t *testing.T) {
	rec := &fakeRecognizer{answers: []fakeAnswer{
		{lines: []entity.RecognitionLine{
			line("2024", 0.8, image.Rect(0, 0, 10, 10)),
			line("-01-01", 0.6, image.Rect(10, 0, 20, 10)),
		}},
		{lines: nil},
		{lines: []entity.RecognitionLine{line("项目", 0.5, image.Rect(0, 0, 10, 10))}},
	}}
	svc := newTestService(rec, nil)

	task := taskWithRegions(pngBase64(t, 1000, 1000),
		rectangle("r1", 10, 10, 20, 20),
		rectangle("r2", 50, 50, 10, 10),
		rectangle("r3", 0, 0, 50, 5),
	)
	results := svc.Predict(context.Background(), []entity.Task{task})

	require.Len(t, rec.sizes, 3)
	assert.Equal(t, image.Pt(200, 200), rec.sizes[0])
	assert.Equal(t, image.Pt(100, 100), rec.sizes[1])
	assert.Equal(t, image.Pt(500, 50), rec.sizes[2])

	res := results[0]
	require.Len(t, res.Result, 4, "region without text is left out")

	first := res.Result[0]
	assert.Equal(t, "r1", first.ID)
	assert.Equal(t, "r1", res.Result[1].ID)
	assert.Equal(t, entity.AnnotationValue{X: 10, Y: 10, Width: 20, Height: 20, RectangleLabels: []string{"日期"}}, first.Value)
	assert.Equal(t, []string{"2024 -01-01"}, res.Result[1].Value.Text)
	assert.InDelta(t, 0.7, *res.Result[1].Value.Score, 1e-9)

	assert.Equal(t, "r3", res.Result[2].ID)
	assert.Equal(t, []string{"表格"}, res.Result[2].Value.RectangleLabels)

	require.NotNil(t, res.Score)
	assert.InDelta(t, 0.6, *res.Score, 1e-9)
}

func TestPredictRegionsDropsInvalidCrops(t *testing.T) {
	rec := &fakeRecognizer{answers: []fakeAnswer{{lines: []entity.RecognitionLine{line("文字", 0.5, image.Rect(0, 0, 1, 1))}}}}
	svc := newTestService(rec, nil)

	task := taskWithRegions(pngBase64(t, 100, 100),
		rectangle("zero", 10, 10, 0, 20),
		rectangle("outside", 150, 10, 10, 10),
		rectangle("ok", 10, 10, 10, 10),
	)
	results := svc.Predict(context.Background(), []entity.Task{task})

	assert.Equal(t, 1, rec.calls)
	require.Len(t, results[0].Result, 2)
	assert.Equal(t, "ok", results[0].Result[0].ID)
}

func TestPredictRegionsAllInvalid(t *testing.T) {
	rec := &fakeRecognizer{}
	svc := newTestService(rec, nil)

	task := taskWithRegions(pngBase64(t, 100, 100), rectangle("a", 10, 10, 0, 0))
	results := svc.Predict(context.Background(), []entity.Task{task})

	assert.Zero(t, rec.calls)
	assert.Equal(t, entity.EmptyResult(testVersion), results[0])
}

func TestPredictRegionsWithoutText(t *testing.T) {
	svc := newTestService(&fakeRecognizer{answers: []fakeAnswer{{}}}, nil)

	results := svc.Predict(context.Background(), []entity.Task{taskWithRegions(pngBase64(t, 100, 100), rectangle("a", 0, 0, 50, 50))})

	assert.Empty(t, results[0].Result)
	require.NotNil(t, results[0].Score)
	assert.Zero(t, *results[0].Score)
}

func TestPredictIgnoresNonRectangleShapes(t *testing.T) {
	rec := &fakeRecognizer{answers: []fakeAnswer{{lines: []entity.RecognitionLine{line("文字", 0.5, image.Rect(0, 0, 10, 10))}}}}
	svc := newTestService(rec, nil)

	task := taskWithRegions(pngBase64(t, 100, 100), entity.RegionResult{Type: "polygon", Value: entity.Region{X: 1, Y: 1, Width: 5, Height: 5}})
	results := svc.Predict(context.Background(), []entity.Task{task})

	// falls back to whole image recognition
	require.Len(t, rec.sizes, 1)
	assert.Equal(t, image.Pt(100, 100), rec.sizes[0])
	assert.Len(t, results[0].Result, 2)
}

func TestPredictRegionFailureIsIsolated(t *testing.T) {
	rec := &fakeRecognizer{answers: []fakeAnswer{
		{err: entity.ErrRecognition},
		{lines: []entity.RecognitionLine{line("文字", 0.4, image.Rect(0, 0, 10, 10))}},
	}}
	svc := newTestService(rec, nil)

	task := taskWithRegions(pngBase64(t, 100, 100), rectangle("bad", 0, 0, 50, 50), rectangle("good", 50, 50, 50, 50))
	results := svc.Predict(context.Background(), []entity.Task{task})

	require.Len(t, results[0].Result, 2)
	assert.Equal(t, "good", results[0].Result[0].ID)
}

func TestPredictBadTaskDoesNotAbortBatch(t *testing.T) {
	rec := &fakeRecognizer{answers: []fakeAnswer{{lines: []entity.RecognitionLine{line("文字", 0.5, image.Rect(0, 0, 10, 10))}}}}
	producer := &recordingProducer{}
	svc := newTestService(rec, producer)

	tasks := []entity.Task{
		{Data: entity.TaskData{Image: "not base64 at all!"}},
		{Data: entity.TaskData{Image: base64.StdEncoding.EncodeToString([]byte("not an image"))}},
		{Data: entity.TaskData{Image: pngBase64(t, 20, 20)}},
	}
	results := svc.Predict(context.Background(), tasks)

	require.Len(t, results, 3)
	assert.Equal(t, entity.EmptyResult(testVersion), results[0])
	assert.Equal(t, entity.EmptyResult(testVersion), results[1])
	assert.Len(t, results[2].Result, 2)

	require.Len(t, producer.messages, 1)
	event, ok := producer.messages[0].(entity.PredictionEvent)
	require.True(t, ok)
	assert.Equal(t, 3, event.Tasks)
	assert.Equal(t, 1, event.Annotated)
	assert.InDelta(t, 0.5, event.MeanScore, 1e-9)
	assert.Equal(t, testVersion, event.ModelVersion)
	assert.NotEmpty(t, event.BatchID)
}

func TestPredictPanicDegradesOnlyThatTask(t *testing.T) {
	rec := &fakeRecognizer{
		answers: []fakeAnswer{{lines: []entity.RecognitionLine{line("文字", 0.5, image.Rect(0, 0, 10, 10))}}},
		panicAt: 1,
	}
	svc := newTestService(rec, nil)

	img := pngBase64(t, 20, 20)
	var results []entity.PredictionResult
	require.NotPanics(t, func() {
		results = svc.Predict(context.Background(), []entity.Task{
			{Data: entity.TaskData{Image: img}},
			{Data: entity.TaskData{Image: img}},
		})
	})

	require.Len(t, results, 2)
	assert.Equal(t, entity.EmptyResult(testVersion), results[0])
	assert.Len(t, results[1].Result, 2)
	assert.Equal(t, 2, rec.calls)
}

func TestPredictWholeImageWithEXIFRotation(t *testing.T) {
	// the engine reports lines on the upright 100x200 pixels it receives
	rec := &fakeRecognizer{answers: []fakeAnswer{{lines: []entity.RecognitionLine{
		line("文字", 0.5, image.Rect(0, 0, 100, 200)),
	}}}}
	svc := newTestService(rec, nil)

	results := svc.Predict(context.Background(), []entity.Task{{Data: entity.TaskData{Image: rotatedJPEGBase64(t, 200, 100)}}})

	require.Len(t, rec.sizes, 1)
	assert.Equal(t, image.Pt(100, 200), rec.sizes[0])
	require.Len(t, results[0].Result, 2)
	v := results[0].Result[0].Value
	assert.InDelta(t, 0.0, v.X, 1e-9)
	assert.InDelta(t, 0.0, v.Y, 1e-9)
	assert.InDelta(t, 100.0, v.Width, 1e-9)
	assert.InDelta(t, 100.0, v.Height, 1e-9)
}

func TestPredictRecognizerErrorOnWholeImage(t *testing.T) {
	svc := newTestService(&fakeRecognizer{answers: []fakeAnswer{{err: errors.New("engine exploded")}}}, nil)

	results := svc.Predict(context.Background(), []entity.Task{{Data: entity.TaskData{Image: pngBase64(t, 20, 20)}}})

	assert.Equal(t, entity.EmptyResult(testVersion), results[0])
}

func TestPredictEmptyBatch(t *testing.T) {
	results := newTestService(&fakeRecognizer{}, nil).Predict(context.Background(), nil)

	assert.NotNil(t, results)
	assert.Empty(t, results)
}
