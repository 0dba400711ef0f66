package models

// Nullable numbers and strings from the prediction API are decoded into
// pointers; a nil pointer means the API sent null or omitted the field.

// PlanetCharacteristics groups the planet block of a prediction
type PlanetCharacteristics struct {
	RadiusRE          *float64 `json:"radius_re"`
	MassME            *float64 `json:"mass_me"`
	DensityGCM3       *float64 `json:"density_gcm3"`
	OrbitalPeriodDays *float64 `json:"orbital_period_days"`
	SemiMajorAxisAU   *float64 `json:"semi_major_axis_au"`
	EquilibriumTempK  *float64 `json:"equilibrium_temp_k"`
	InsolationEarth   *float64 `json:"insolation_earth"`
}

// StarCharacteristics groups the host star block of a prediction
type StarCharacteristics struct {
	TeffK          *float64 `json:"teff_k"`
	RadiusRsun     *float64 `json:"radius_rsun"`
	MassMsun       *float64 `json:"mass_msun"`
	LuminosityLsun *float64 `json:"luminosity_lsun"`
	TeffBin        *string  `json:"teff_bin"`
	TeffLabel      *string  `json:"teff_label"`
}

// TransitCharacteristics groups the transit block of a prediction
type TransitCharacteristics struct {
	DepthPPM      *float64 `json:"depth_ppm"`
	DurationHours *float64 `json:"duration_hours"`
	RadiusRatio   *float64 `json:"radius_ratio"`
}

// DerivedFeatures holds features the API computed from the inputs
type DerivedFeatures struct {
	PeriodMassInteraction *float64 `json:"period_mass_interaction"`
	LogOrbitalPeriod      *float64 `json:"log_orbital_period"`
}

// QualityFlags reports which inputs the API had to impute
type QualityFlags struct {
	PlanetMassImputed   *bool `json:"planet_mass_imputed"`
	StellarMassImputed  *bool `json:"stellar_mass_imputed"`
	PlanetRadiusImputed *bool `json:"planet_radius_imputed"`
}

// EarthComparison holds ratios against Earth
type EarthComparison struct {
	RadiusRatioEarth     *float64 `json:"radius_ratio_earth"`
	InsolationRatioEarth *float64 `json:"insolation_ratio_earth"`
}

// PredictionResponse is the body of a predict call
type PredictionResponse struct {
	ProbRF   *float64 `json:"prob_rf"`
	LabelRF  *string  `json:"label_rf"`
	ProbHGB  *float64 `json:"prob_hgb"`
	LabelHGB *string  `json:"label_hgb"`
	ProbEns  *float64 `json:"prob_ens"`
	LabelEns *string  `json:"label_ens"`

	Planet            PlanetCharacteristics  `json:"planet"`
	Star              StarCharacteristics    `json:"star"`
	Transit           TransitCharacteristics `json:"transit"`
	DerivedFeatures   DerivedFeatures        `json:"derived_features"`
	QualityFlags      QualityFlags           `json:"quality_flags"`
	ComparisonToEarth EarthComparison        `json:"comparison_to_earth"`

	PredictionID *string `json:"prediction_id"`
}

// SimilarExoplanet is one entry of a comparison
type SimilarExoplanet struct {
	PlanetName        string   `json:"planet_name"`
	SimilarityScore   float64  `json:"similarity_score"`
	Distance          *float64 `json:"distance"`
	StellarType       string   `json:"stellar_type"`
	PlanetType        string   `json:"planet_type"`
	OrbitalPeriodDays float64  `json:"orbital_period_days"`
	PlanetRadiusRE    float64  `json:"planet_radius_re"`
	EquilibriumTempK  float64  `json:"equilibrium_temp_k"`
	HabitabilityScore float64  `json:"habitability_score"`
	DiscoveryYear     *int     `json:"discovery_year"`
}

// ComparisonResponse is the body of a compare call
type ComparisonResponse struct {
	SimilarExoplanets  []SimilarExoplanet `json:"similar_exoplanets"`
	ComparisonSummary  string             `json:"comparison_summary"`
	UniquenessScore    float64            `json:"uniqueness_score"`
	ScientificInterest string             `json:"scientific_interest"`
}

// ModelMetrics are the evaluation scores of the deployed model, in [0,1]
type ModelMetrics struct {
	ROCAUC    float64 `json:"roc_auc"`
	PRAUC     float64 `json:"pr_auc"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
}

// Explainability summarises why the model decided what it did
type Explainability struct {
	ConfidenceScore float64  `json:"confidence_score"`
	OverallSummary  string   `json:"overall_summary"`
	KeyFactors      []string `json:"key_factors"`
}

// DashboardResponse is the body of a dashboard detail call
type DashboardResponse struct {
	ModelMetrics   ModelMetrics       `json:"model_metrics"`
	Prediction     PredictionResponse `json:"prediction"`
	Explainability Explainability     `json:"explainability"`
}

// Clone returns a deep copy of p
func (p PredictionResponse) Clone() PredictionResponse {
	p.ProbRF = clonePtr(p.ProbRF)
	p.LabelRF = clonePtr(p.LabelRF)
	p.ProbHGB = clonePtr(p.ProbHGB)
	p.LabelHGB = clonePtr(p.LabelHGB)
	p.ProbEns = clonePtr(p.ProbEns)
	p.LabelEns = clonePtr(p.LabelEns)
	p.PredictionID = clonePtr(p.PredictionID)

	p.Planet = PlanetCharacteristics{
		RadiusRE:          clonePtr(p.Planet.RadiusRE),
		MassME:            clonePtr(p.Planet.MassME),
		DensityGCM3:       clonePtr(p.Planet.DensityGCM3),
		OrbitalPeriodDays: clonePtr(p.Planet.OrbitalPeriodDays),
		SemiMajorAxisAU:   clonePtr(p.Planet.SemiMajorAxisAU),
		EquilibriumTempK:  clonePtr(p.Planet.EquilibriumTempK),
		InsolationEarth:   clonePtr(p.Planet.InsolationEarth),
	}
	p.Star = StarCharacteristics{
		TeffK:          clonePtr(p.Star.TeffK),
		RadiusRsun:     clonePtr(p.Star.RadiusRsun),
		MassMsun:       clonePtr(p.Star.MassMsun),
		LuminosityLsun: clonePtr(p.Star.LuminosityLsun),
		TeffBin:        clonePtr(p.Star.TeffBin),
		TeffLabel:      clonePtr(p.Star.TeffLabel),
	}
	p.Transit = TransitCharacteristics{
		DepthPPM:      clonePtr(p.Transit.DepthPPM),
		DurationHours: clonePtr(p.Transit.DurationHours),
		RadiusRatio:   clonePtr(p.Transit.RadiusRatio),
	}
	p.DerivedFeatures = DerivedFeatures{
		PeriodMassInteraction: clonePtr(p.DerivedFeatures.PeriodMassInteraction),
		LogOrbitalPeriod:      clonePtr(p.DerivedFeatures.LogOrbitalPeriod),
	}
	p.QualityFlags = QualityFlags{
		PlanetMassImputed:   clonePtr(p.QualityFlags.PlanetMassImputed),
		StellarMassImputed:  clonePtr(p.QualityFlags.StellarMassImputed),
		PlanetRadiusImputed: clonePtr(p.QualityFlags.PlanetRadiusImputed),
	}
	p.ComparisonToEarth = EarthComparison{
		RadiusRatioEarth:     clonePtr(p.ComparisonToEarth.RadiusRatioEarth),
		InsolationRatioEarth: clonePtr(p.ComparisonToEarth.InsolationRatioEarth),
	}
	return p
}

// Clone returns a deep copy of c; nil yields nil
func (c *ComparisonResponse) Clone() *ComparisonResponse {
	if c == nil {
		return nil
	}
	out := *c
	if c.SimilarExoplanets != nil {
		out.SimilarExoplanets = make([]SimilarExoplanet, len(c.SimilarExoplanets))
		for i, e := range c.SimilarExoplanets {
			e.Distance = clonePtr(e.Distance)
			e.DiscoveryYear = clonePtr(e.DiscoveryYear)
			out.SimilarExoplanets[i] = e
		}
	}
	return &out
}

// Clone returns a deep copy of d; nil yields nil
func (d *DashboardResponse) Clone() *DashboardResponse {
	if d == nil {
		return nil
	}
	out := *d
	out.Prediction = d.Prediction.Clone()
	if d.Explainability.KeyFactors != nil {
		out.Explainability.KeyFactors = append([]string(nil), d.Explainability.KeyFactors...)
	}
	return &out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
