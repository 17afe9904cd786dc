package entity

// Task is one item of a labeling-tool prediction batch.
type Task struct {
	Data        TaskData         `json:"data"`
	Predictions []TaskPrediction `json:"predictions,omitempty"`
}

type TaskData struct {
	Image string `json:"image"`
}

type TaskPrediction struct {
	Result []RegionResult `json:"result"`
}

// RegionResult is a previously drawn shape. Only "rectangle" entries are used as regions.
type RegionResult struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Value Region `json:"value"`
}

// Region is a rectangle in percent of the image size.
type Region struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

const RegionTypeRectangle = "rectangle"

// Regions returns the rectangle regions of the first prediction, if any.
func (t Task) Regions() []RegionResult {
	if len(t.Predictions) == 0 {
		return nil
	}
	var out []RegionResult
	for _, r := range t.Predictions[0].Result {
		if r.Type == RegionTypeRectangle {
			out = append(out, r)
		}
	}
	return out
}

type PredictRequest struct {
	Tasks []Task `json:"tasks" binding:"required"`
}
