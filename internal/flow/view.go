package flow

import (
	"time"

	"github.com/kartoza/exoplanet-portal/internal/detection"
	"github.com/kartoza/exoplanet-portal/internal/models"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

// State is the lifecycle position of a form
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// View is what presentation reads. The controller never mutates a View it
// has handed out; every change produces a new one.
type View struct {
	Variant    schema.Variant `json:"variant"`
	State      State          `json:"state"`
	Generation uint64         `json:"generation"`

	Values      map[string]any     `json:"values"`
	FieldErrors schema.FieldErrors `json:"fieldErrors,omitempty"`
	Error       string             `json:"error,omitempty"`

	Detection *detection.Result `json:"detection,omitempty"`
	Metrics   []detection.Metric `json:"metrics,omitempty"`
	Breakdown []detection.Metric `json:"breakdown,omitempty"`

	Comparison *models.ComparisonResponse `json:"comparison,omitempty"`
	EyesLink   string                     `json:"eyesLink,omitempty"`

	Dashboard        *models.DashboardResponse   `json:"dashboard,omitempty"`
	DashboardSummary *detection.DashboardSummary `json:"dashboardSummary,omitempty"`

	// DetectionID is the archive id of a succeeded detection, when archived.
	DetectionID string `json:"detectionId,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// clone deep-copies every map, slice and pointer so callers can't reach the
// controller's state
func (v View) clone() View {
	if v.Detection != nil {
		d := v.Detection.Clone()
		v.Detection = &d
	}
	v.Comparison = v.Comparison.Clone()
	v.Dashboard = v.Dashboard.Clone()
	if v.DashboardSummary != nil {
		s := *v.DashboardSummary
		s.ModelPerformance = append([]detection.Metric(nil), s.ModelPerformance...)
		s.Characteristics = append([]detection.Metric(nil), s.Characteristics...)
		s.KeyFactors = append([]string(nil), s.KeyFactors...)
		v.DashboardSummary = &s
	}
	v.Metrics = append([]detection.Metric(nil), v.Metrics...)
	v.Breakdown = append([]detection.Metric(nil), v.Breakdown...)
	if v.Values != nil {
		values := make(map[string]any, len(v.Values))
		for k, val := range v.Values {
			values[k] = val
		}
		v.Values = values
	}
	if v.FieldErrors != nil {
		errs := make(schema.FieldErrors, len(v.FieldErrors))
		for k, msg := range v.FieldErrors {
			errs[k] = msg
		}
		v.FieldErrors = errs
	}
	return v
}
