// Package detection turns prediction API responses into the view model the
// result panels render.
package detection

import (
	"github.com/kartoza/exoplanet-portal/internal/models"
)

const (
	// NoDetectionLabel is used when no model produced a label.
	NoDetectionLabel = "No detection"

	// ExoplanetThreshold is the confidence at or above which the result is
	// shown as an exoplanet.
	ExoplanetThreshold = 0.5

	// ExoplanetTexture and EarthTexture are the surface maps of the globe.
	ExoplanetTexture = "/surface-map.jpg"
	EarthTexture     = "/earth-surface-map.jpg"
)

// Probabilities holds the per-model probabilities; nil means the model gave none.
type Probabilities struct {
	RF       *float64 `json:"rf"`
	HGB      *float64 `json:"hgb"`
	Ensemble *float64 `json:"ensemble"`
}

// Labels holds the per-model labels; nil means the model gave none.
type Labels struct {
	RF       *string `json:"rf"`
	HGB      *string `json:"hgb"`
	Ensemble *string `json:"ensemble"`
}

// Result is the denormalized detection view model
type Result struct {
	IsExoplanet    bool                      `json:"isExoplanet"`
	Label          string                    `json:"label"`
	Confidence     float64                   `json:"confidence"`
	Probabilities  Probabilities             `json:"probabilities"`
	Labels         Labels                    `json:"labels"`
	SurfaceTexture string                    `json:"surfaceTexture"`
	Prediction     models.PredictionResponse `json:"prediction"`
}

// FirstNonNil returns the first non-nil candidate in priority order.
func FirstNonNil[T any](candidates ...*T) (T, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	var zero T
	return zero, false
}

// Reconcile maps a prediction response to a Result. Ensemble wins over
// gradient boosting, which wins over random forest. It never fails.
func Reconcile(p *models.PredictionResponse) Result {
	var pred models.PredictionResponse
	if p != nil {
		pred = p.Clone()
	}

	confidence, ok := FirstNonNil(pred.ProbEns, pred.ProbHGB, pred.ProbRF)
	if !ok {
		confidence = 0
	}
	label, ok := FirstNonNil(pred.LabelEns, pred.LabelHGB, pred.LabelRF)
	if !ok {
		label = NoDetectionLabel
	}
	isExoplanet := confidence >= ExoplanetThreshold

	texture := EarthTexture
	if isExoplanet {
		texture = ExoplanetTexture
	}

	return Result{
		IsExoplanet:    isExoplanet,
		Label:          label,
		Confidence:     confidence,
		SurfaceTexture: texture,
		Probabilities: Probabilities{
			RF:       pred.ProbRF,
			HGB:      pred.ProbHGB,
			Ensemble: pred.ProbEns,
		},
		Labels: Labels{
			RF:       pred.LabelRF,
			HGB:      pred.LabelHGB,
			Ensemble: pred.LabelEns,
		},
		Prediction: pred,
	}
}

// AverageProbability is the mean of the three model probabilities, with a
// missing probability counted as zero.
func AverageProbability(p Probabilities) float64 {
	var sum float64
	for _, v := range []*float64{p.RF, p.HGB, p.Ensemble} {
		if v != nil {
			sum += *v
		}
	}
	return sum / 3
}

// Clone returns a deep copy of r that shares no pointers with it
func (r Result) Clone() Result {
	r.Prediction = r.Prediction.Clone()
	r.Probabilities = Probabilities{
		RF:       clonePtr(r.Probabilities.RF),
		HGB:      clonePtr(r.Probabilities.HGB),
		Ensemble: clonePtr(r.Probabilities.Ensemble),
	}
	r.Labels = Labels{
		RF:       clonePtr(r.Labels.RF),
		HGB:      clonePtr(r.Labels.HGB),
		Ensemble: clonePtr(r.Labels.Ensemble),
	}
	return r
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
