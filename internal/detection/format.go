package detection

import (
	"fmt"
	"strings"

	"github.com/kartoza/exoplanet-portal/internal/models"
)

// EyesBaseURL is the NASA Eyes on Exoplanets planet page.
const EyesBaseURL = "https://eyes.nasa.gov/apps/exo/#/planet/"

// Missing is shown in place of a null value.
const Missing = "--"

// Metric is one titled value on a result card
type Metric struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// EyesLink builds the deep link for a planet name, with spaces replaced by underscores
func EyesLink(planetName string) string {
	return EyesBaseURL + strings.ReplaceAll(planetName, " ", "_")
}

// EyesLinkFor returns the deep link for the closest match of a comparison,
// or "" when there is none.
func EyesLinkFor(c *models.ComparisonResponse) string {
	if c == nil || len(c.SimilarExoplanets) == 0 {
		return ""
	}
	name := strings.TrimSpace(c.SimilarExoplanets[0].PlanetName)
	if name == "" {
		return ""
	}
	return EyesLink(name)
}

// FormatFixed formats v with the given decimals, or Missing when nil
func FormatFixed(v *float64, decimals int) string {
	if v == nil {
		return Missing
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}

// FormatPercent renders a probability in [0,1] as a percentage with one decimal.
// A nil or zero probability renders as Missing, matching the model cards.
func FormatPercent(v *float64) string {
	if v == nil || *v == 0 {
		return Missing
	}
	return percent(*v)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func withUnit(s, unit string) string {
	if s == Missing {
		return s
	}
	return s + " " + unit
}

// PlanetMetrics lists the headline values of a detected planet
func PlanetMetrics(r Result) []Metric {
	planet := r.Prediction.Planet
	return []Metric{
		{Title: "Classification", Value: r.Label},
		{Title: "Radius (R⊕)", Value: FormatFixed(planet.RadiusRE, 2)},
		{Title: "Mass (M⊕)", Value: FormatFixed(planet.MassME, 2)},
		{Title: "Equilibrium temperature", Value: withUnit(FormatFixed(planet.EquilibriumTempK, 0), "K")},
		{Title: "Insolation (S⊕)", Value: FormatFixed(planet.InsolationEarth, 2)},
	}
}

// ModelBreakdown lists each model's probability for the probability card
func ModelBreakdown(r Result) []Metric {
	return []Metric{
		{Title: "Random Forest", Value: FormatPercent(r.Probabilities.RF)},
		{Title: "Hist. Gradient Boost", Value: FormatPercent(r.Probabilities.HGB)},
		{Title: "Ensemble", Value: FormatPercent(r.Probabilities.Ensemble)},
		{Title: "Average", Value: percent(AverageProbability(r.Probabilities))},
	}
}

// DashboardSummary is the formatted content of the metrics dashboard
type DashboardSummary struct {
	ModelPerformance []Metric `json:"modelPerformance"`
	Characteristics  []Metric `json:"characteristics"`
	Summary          string   `json:"summary"`
	KeyFactors       []string `json:"keyFactors"`
}

// maxKeyFactors is how many explainability factors the dashboard shows.
const maxKeyFactors = 3

// SummarizeDashboard formats a dashboard response; nil yields nil.
func SummarizeDashboard(d *models.DashboardResponse) *DashboardSummary {
	if d == nil {
		return nil
	}
	m := d.ModelMetrics
	planet := d.Prediction.Planet
	star := d.Prediction.Star

	factors := d.Explainability.KeyFactors
	if len(factors) > maxKeyFactors {
		factors = factors[:maxKeyFactors]
	}

	return &DashboardSummary{
		ModelPerformance: []Metric{
			{Title: "ROC AUC", Value: percent(m.ROCAUC)},
			{Title: "PR AUC", Value: percent(m.PRAUC)},
			{Title: "Recall", Value: percent(m.Recall)},
			{Title: "F1-Score", Value: percent(m.F1Score)},
			{Title: "Accuracy", Value: percent(m.Accuracy)},
			{Title: "Precision", Value: percent(m.Precision)},
		},
		Characteristics: []Metric{
			{Title: "Radius (R⊕)", Value: FormatFixed(planet.RadiusRE, 2)},
			{Title: "Mass (M⊕)", Value: FormatFixed(planet.MassME, 2)},
			{Title: "Stellar temperature", Value: withUnit(FormatFixed(star.TeffK, 0), "K")},
			{Title: "Orbital period", Value: withUnit(FormatFixed(planet.OrbitalPeriodDays, 1), "days")},
			{Title: "Equilibrium temperature", Value: withUnit(FormatFixed(planet.EquilibriumTempK, 0), "K")},
			{Title: "AI confidence", Value: percent(d.Explainability.ConfidenceScore)},
		},
		Summary:    d.Explainability.OverallSummary,
		KeyFactors: append([]string(nil), factors...),
	}
}
