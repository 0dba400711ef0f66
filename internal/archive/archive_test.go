package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kartoza/exoplanet-portal/internal/detection"
	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/models"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", FileName))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func succeededView(label string, prob float64) flow.View {
	result := detection.Reconcile(&models.PredictionResponse{ProbEns: &prob, LabelEns: &label})
	return flow.View{
		Variant:   schema.VariantUser,
		State:     flow.StateSucceeded,
		Values:    map[string]any{"orbital_period_days": 41.69},
		Detection: &result,
		EyesLink:  detection.EyesLink("Kepler 22 b"),
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	store := openTestStore(t)
	if filepath.Base(store.Path()) != FileName {
		t.Errorf("unexpected path %s", store.Path())
	}
	list, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected empty archive, got %d rows", len(list))
	}
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, succeededView("Confirmed", 0.92))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected an id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Label != "Confirmed" || got.Confidence != 0.92 || !got.IsExoplanet {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	if got.Variant != schema.VariantUser {
		t.Errorf("variant = %s", got.Variant)
	}
	if got.EyesLink != "https://eyes.nasa.gov/apps/exo/#/planet/Kepler_22_b" {
		t.Errorf("eyes link = %s", got.EyesLink)
	}
	if got.View.DetectionID != id {
		t.Errorf("view detection id = %q, want %q", got.View.DetectionID, id)
	}
	if got.View.Values["orbital_period_days"] != 41.69 {
		t.Errorf("values not preserved: %v", got.View.Values)
	}
}

func TestRecordRejectsUnsucceeded(t *testing.T) {
	store := openTestStore(t)
	for _, v := range []flow.View{
		{State: flow.StateFailed, Error: "boom"},
		{State: flow.StateSucceeded},
	} {
		if _, err := store.Record(context.Background(), v); err == nil {
			t.Errorf("expected error recording %s view", v.State)
		}
	}
}

func TestGetUnknown(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i, label := range []string{"False Positive", "Candidate", "Confirmed"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		id, err := store.Record(ctx, succeededView(label, 0.3*float64(i+1)))
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		ids = append(ids, id)
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var got []string
	for _, s := range list {
		got = append(got, s.ID)
	}
	want := []string{ids[2], ids[1], ids[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if !list[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("created_at = %v", list[0].CreatedAt)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(limited))
	}
}

func TestListNewestFirstWithinSecond(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	record := func(label string, at time.Time) string {
		store.now = func() time.Time { return at }
		id, err := store.Record(ctx, succeededView(label, 0.9))
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		return id
	}
	// Inserted out of time order so rowid can't mask a bad sort.
	newer := record("newer", base.Add(150*time.Millisecond))
	older := record("older", base.Add(100*time.Millisecond))
	whole := record("whole", base.Add(time.Second))

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var got []string
	for _, s := range list {
		got = append(got, s.ID)
	}
	if diff := cmp.Diff([]string{whole, newer, older}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if !list[1].CreatedAt.Equal(base.Add(150 * time.Millisecond)) {
		t.Errorf("created_at = %v, want sub-second precision kept", list[1].CreatedAt)
	}
}

func TestStoreIsFlowRecorder(t *testing.T) {
	var _ flow.Recorder = (*Store)(nil)
}
