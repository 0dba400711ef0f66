package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kartoza/exoplanet-portal/internal/schema"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	opts = append([]Option{WithHTTPClient(server.Client())}, opts...)
	c, err := New(server.URL+"/api/v1/", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func userInput(t *testing.T) schema.Input {
	t.Helper()
	s, err := schema.Lookup(schema.VariantUser)
	if err != nil {
		t.Fatal(err)
	}
	return s.Defaults()
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New("not a url"); err == nil {
		t.Error("expected error for relative base URL")
	}
	if _, err := New("http://example.com", WithTimeout(0)); err == nil {
		t.Error("expected error for zero timeout")
	}
}

func TestNewDefaultTimeout(t *testing.T) {
	c, err := New("http://example.com/api/v1/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.httpClient.Timeout)
	}
	if c.BaseURL() != "http://example.com/api/v1" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestPredict(t *testing.T) {
	var gotBody map[string]float64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/predict/user" {
			http.NotFound(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"prob_ens":0.92,"label_ens":"Confirmed","prob_rf":null,"prediction_id":"abc","planet":{"radius_re":2.1}}`))
	})

	resp, err := c.Predict(context.Background(), schema.VariantUser, userInput(t))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if resp.ProbEns == nil || *resp.ProbEns != 0.92 {
		t.Errorf("prob_ens = %v", resp.ProbEns)
	}
	if resp.ProbRF != nil {
		t.Errorf("prob_rf should be nil, got %v", *resp.ProbRF)
	}
	if resp.PredictionID == nil || *resp.PredictionID != "abc" {
		t.Errorf("prediction_id = %v", resp.PredictionID)
	}
	if resp.Planet.RadiusRE == nil || *resp.Planet.RadiusRE != 2.1 {
		t.Errorf("planet.radius_re = %v", resp.Planet.RadiusRE)
	}
	if gotBody["orbital_period_days"] != 41.69 {
		t.Errorf("request body orbital_period_days = %v", gotBody["orbital_period_days"])
	}
}

func TestPredictServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"model unavailable"}`))
	})

	_, err := c.Predict(context.Background(), schema.VariantUser, userInput(t))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", reqErr.StatusCode)
	}
	if got := ErrorMessage(err); got != "model unavailable" {
		t.Errorf("ErrorMessage = %q, want %q", got, "model unavailable")
	}
}

func TestErrorBodyVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"validation failed"}`, "validation failed"},
		{"error", `{"error":"boom"}`, "boom"},
		{"non-string detail", `{"detail":[{"loc":["body"]}]}`, "Request failed with status code 422"},
		{"plain text", `Bad Gateway`, "Request failed with status code 422"},
		{"empty", ``, "Request failed with status code 422"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Predict(context.Background(), schema.VariantUser, userInput(t))
			if got := ErrorMessage(err); got != tc.want {
				t.Errorf("ErrorMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPredictMalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prob_ens": 0.9`))
	})
	_, err := c.Predict(context.Background(), schema.VariantUser, userInput(t))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if !strings.HasPrefix(reqErr.Message, "decode response") {
		t.Errorf("message = %q", reqErr.Message)
	}
}

func TestPredictTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := c.Predict(context.Background(), schema.VariantUser, userInput(t))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("timeout should carry no status, got %d", reqErr.StatusCode)
	}
	if reqErr.Message == "" {
		t.Error("expected transport message")
	}
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	c, err := New(base)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Predict(context.Background(), schema.VariantUser, userInput(t))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Err == nil {
		t.Fatalf("expected transport RequestError, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/compare/scientist" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"similar_exoplanets":[{"planet_name":"Kepler 22 b","similarity_score":0.81}],"comparison_summary":"close match"}`))
	})
	resp, err := c.Compare(context.Background(), schema.VariantScientist, schema.Input{"a": 1})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if resp.SimilarExoplanets[0].PlanetName != "Kepler 22 b" {
		t.Errorf("planet_name = %q", resp.SimilarExoplanets[0].PlanetName)
	}
}

func TestCompareEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"similar_exoplanets":[]}`))
	})
	if _, err := c.Compare(context.Background(), schema.VariantUser, userInput(t)); err == nil {
		t.Error("expected error for empty comparison")
	}
}

func TestDashboardDetail(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"model_metrics":{"roc_auc":0.97},"explainability":{"confidence_score":0.9,"key_factors":["depth"]}}`))
	})
	resp, err := c.DashboardDetail(context.Background(), "abc/1")
	if err != nil {
		t.Fatalf("DashboardDetail: %v", err)
	}
	if gotPath != "/api/v1/dashboard/scientific/abc%2F1" {
		t.Errorf("path = %q", gotPath)
	}
	if resp.ModelMetrics.ROCAUC != 0.97 {
		t.Errorf("roc_auc = %v", resp.ModelMetrics.ROCAUC)
	}

	if _, err := c.DashboardDetail(context.Background(), ""); err == nil {
		t.Error("expected error for empty prediction id")
	}
}

func TestErrorMessageFallback(t *testing.T) {
	if got := ErrorMessage(errors.New("opaque")); got != FallbackMessage {
		t.Errorf("ErrorMessage = %q", got)
	}
	if got := ErrorMessage(nil); got != "" {
		t.Errorf("ErrorMessage(nil) = %q", got)
	}
}

func TestNewDoesNotModifyCallerClient(t *testing.T) {
	shared := &http.Client{Timeout: 5 * time.Second}
	c, err := New("http://example.com", WithHTTPClient(shared), WithTimeout(time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if shared.Timeout != 5*time.Second {
		t.Errorf("caller client timeout changed to %v", shared.Timeout)
	}
	if c.httpClient == shared || c.httpClient.Timeout != time.Minute {
		t.Errorf("client timeout = %v, want 1m on a private copy", c.httpClient.Timeout)
	}

	before := http.DefaultClient.Timeout
	if _, err := New("http://example.com", WithHTTPClient(http.DefaultClient)); err != nil {
		t.Fatalf("New: %v", err)
	}
	if http.DefaultClient.Timeout != before {
		t.Errorf("http.DefaultClient timeout changed to %v", http.DefaultClient.Timeout)
	}
}
