package entity

import "image"

const (
	AnnotationRectangleLabels = "rectanglelabels"
	AnnotationTextArea        = "textarea"
)

// RecognitionLine is one line reported by the OCR engine, in pixel space.
type RecognitionLine struct {
	Polygon    [4]image.Point
	Text       string
	Confidence float64
}

type Annotation struct {
	ID       string          `json:"id,omitempty"`
	FromName string          `json:"from_name,omitempty"`
	ToName   string          `json:"to_name,omitempty"`
	Type     string          `json:"type"`
	Value    AnnotationValue `json:"value"`
}

type AnnotationValue struct {
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	Width           float64  `json:"width"`
	Height          float64  `json:"height"`
	Rotation        float64  `json:"rotation"`
	RectangleLabels []string `json:"rectanglelabels,omitempty"`
	Text            []string `json:"text,omitempty"`
	Score           *float64 `json:"score,omitempty"`
}

type PredictionResult struct {
	Result       []Annotation `json:"result"`
	ModelVersion string       `json:"model_version"`
	Score        *float64     `json:"score,omitempty"`
}

// EmptyResult is what a failed or blank task degrades to.
func EmptyResult(modelVersion string) PredictionResult {
	return PredictionResult{Result: []Annotation{}, ModelVersion: modelVersion}
}

type PredictResponse struct {
	Results []PredictionResult `json:"results"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// PredictionEvent is published after every batch.
type PredictionEvent struct {
	BatchID      string  `json:"batch_id"`
	Tasks        int     `json:"tasks"`
	Annotated    int     `json:"annotated"`
	MeanScore    float64 `json:"mean_score"`
	DurationMs   int64   `json:"duration_ms"`
	ModelVersion string  `json:"model_version"`
}
