// Package flow runs a form submission end to end: validate, predict,
// enrich with comparison and dashboard data, publish the result.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kartoza/exoplanet-portal/internal/detection"
	"github.com/kartoza/exoplanet-portal/internal/gateway"
	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/models"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

// ErrSubmissionInFlight is returned when Submit is called while a previous
// submission of the same form has not finished.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// ValidationError carries the per-field messages of a rejected submission
type ValidationError struct {
	Fields schema.FieldErrors
}

func (e *ValidationError) Error() string {
	return e.Fields.Error()
}

// PredictionAPI is the remote service as seen by the controller.
// *gateway.Client implements it.
type PredictionAPI interface {
	Predict(ctx context.Context, variant schema.Variant, in schema.Input) (*models.PredictionResponse, error)
	Compare(ctx context.Context, variant schema.Variant, in schema.Input) (*models.ComparisonResponse, error)
	DashboardDetail(ctx context.Context, predictionID string) (*models.DashboardResponse, error)
}

// Recorder stores succeeded detections and returns an id for them
type Recorder interface {
	Record(ctx context.Context, v View) (string, error)
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for swallowed secondary failures
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRecorder archives every succeeded submission
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithClock overrides time.Now for UpdatedAt stamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the state of one form instance. It is the only writer of
// its View; any number of readers may take snapshots or subscribe.
type Controller struct {
	schema   *schema.Schema
	api      PredictionAPI
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	mu         sync.Mutex
	view       View
	generation uint64
	subs       map[int]chan View
	nextSub    int
}

// New returns an Idle controller seeded with the schema defaults
func New(s *schema.Schema, api PredictionAPI, opts ...Option) *Controller {
	c := &Controller{
		schema: s,
		api:    api,
		logger: logging.New("flow"),
		now:    time.Now,
		subs:   make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.view = c.idleView()
	c.view.UpdatedAt = c.now()
	return c
}

// Variant returns the form variant this controller serves
func (c *Controller) Variant() schema.Variant {
	return c.schema.Variant()
}

// View returns a snapshot of the current state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

// Submit validates raw, and when valid runs the whole submission before
// returning the resulting View. Invalid input returns a *ValidationError and
// issues no request. A failed predict call is not an error of Submit: it
// ends in StateFailed with the message in View.Error.
func (c *Controller) Submit(ctx context.Context, raw map[string]any) (View, error) {
	c.mu.Lock()
	if c.view.State == StateSubmitting {
		v := c.view.clone()
		c.mu.Unlock()
		return v, ErrSubmissionInFlight
	}

	in, fieldErrs := c.schema.Validate(raw)
	if fieldErrs != nil {
		c.view.Values = copyRaw(raw)
		c.view.FieldErrors = fieldErrs
		v := c.publishLocked()
		c.mu.Unlock()
		return v, &ValidationError{Fields: fieldErrs}
	}

	c.generation++
	gen := c.generation
	c.view = View{
		Variant:    c.schema.Variant(),
		State:      StateSubmitting,
		Generation: gen,
		Values:     in.Raw(),
	}
	c.publishLocked()
	c.mu.Unlock()

	return c.run(ctx, gen, in), nil
}

// Reset discards any result, error or pending submission and restores the
// default form values. Responses of an abandoned submission are ignored.
func (c *Controller) Reset() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.view = c.idleView()
	return c.publishLocked()
}

// Subscribe returns a channel receiving every published View. Slow readers
// only see the latest one. Call the returned func to unsubscribe.
func (c *Controller) Subscribe() (<-chan View, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan View, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) run(ctx context.Context, gen uint64, in schema.Input) View {
	variant := c.schema.Variant()

	pred, err := c.api.Predict(ctx, variant, in)
	if err != nil {
		c.logger.Warn("prediction failed", "variant", variant, "error", err)
		msg := gateway.ErrorMessage(err)
		v, _ := c.apply(gen, func(v *View) {
			v.State = StateFailed
			v.Error = msg
		})
		return v
	}

	if !c.isCurrent(gen) {
		c.logger.Debug("submission abandoned before enrichment", "generation", gen)
		return c.View()
	}

	result := detection.Reconcile(pred)

	var (
		comparison *models.ComparisonResponse
		dashboard  *models.DashboardResponse
	)
	var g errgroup.Group
	g.Go(func() error {
		resp, err := c.api.Compare(ctx, variant, in)
		if err != nil {
			c.logger.Warn("comparison failed, continuing without deep link", "variant", variant, "error", err)
			return nil
		}
		comparison = resp
		return nil
	})
	if id, ok := detection.FirstNonNil(pred.PredictionID); ok && id != "" {
		g.Go(func() error {
			resp, err := c.api.DashboardDetail(ctx, id)
			if err != nil {
				c.logger.Warn("dashboard detail failed, omitting dashboard", "prediction_id", id, "error", err)
				return nil
			}
			dashboard = resp
			return nil
		})
	}
	_ = g.Wait() // secondary failures are logged above, never returned

	v, applied := c.apply(gen, func(v *View) {
		v.State = StateSucceeded
		v.Detection = &result
		v.Metrics = detection.PlanetMetrics(result)
		v.Breakdown = detection.ModelBreakdown(result)
		v.Comparison = comparison
		v.EyesLink = detection.EyesLinkFor(comparison)
		v.Dashboard = dashboard
		v.DashboardSummary = detection.SummarizeDashboard(dashboard)
	})
	if !applied || c.recorder == nil {
		return v
	}

	id, err := c.recorder.Record(ctx, v)
	if err != nil {
		c.logger.Warn("archiving detection failed", "error", err)
		return v
	}
	if recorded, ok := c.apply(gen, func(v *View) { v.DetectionID = id }); ok {
		return recorded
	}
	return v
}

// apply mutates the view only if gen is still the current submission.
// It returns the resulting snapshot and whether the change was applied.
func (c *Controller) apply(gen uint64, fn func(*View)) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Debug("discarding stale response", "generation", gen, "current", c.generation)
		return c.view.clone(), false
	}
	fn(&c.view)
	return c.publishLocked(), true
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

// publishLocked stamps the view and fans it out. c.mu must be held.
func (c *Controller) publishLocked() View {
	c.view.UpdatedAt = c.now()
	snapshot := c.view.clone()
	for _, ch := range c.subs {
		select {
		case ch <- snapshot.clone():
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot.clone():
			default:
			}
		}
	}
	return snapshot
}

func (c *Controller) idleView() View {
	return View{
		Variant:    c.schema.Variant(),
		State:      StateIdle,
		Generation: c.generation,
		Values:     c.schema.Defaults().Raw(),
	}
}

func copyRaw(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
