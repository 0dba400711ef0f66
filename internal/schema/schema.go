// Package schema defines the two submission forms of the portal and
// validates raw form values against them.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Variant names a form and the API endpoints it posts to
type Variant string

const (
	// VariantUser is the simplified seven-field form.
	VariantUser Variant = "user"
	// VariantScientist is the expanded fourteen-field form.
	VariantScientist Variant = "scientist"
)

// MessageNotANumber is reported for missing or non-numeric values.
const MessageNotANumber = "Enter a number"

// Field describes one numeric input
type Field struct {
	Name        string   `json:"name"`
	Min         *float64 `json:"min,omitempty"`
	Placeholder string   `json:"placeholder"`
	Default     float64  `json:"default"`

	minMessage string
}

// MinMessage is the error reported when a value is below Min
func (f Field) MinMessage() string {
	return f.minMessage
}

// check validates a single raw value. It returns the parsed value or a message.
func (f Field) check(raw any, present bool) (float64, string) {
	if !present {
		return 0, MessageNotANumber
	}
	v, ok := toFloat(raw)
	if !ok {
		return 0, MessageNotANumber
	}
	if f.Min != nil && v < *f.Min {
		return 0, f.minMessage
	}
	return v, ""
}

func minField(name string, min float64, placeholder string, def float64) Field {
	return Field{
		Name:        name,
		Min:         &min,
		Placeholder: placeholder,
		Default:     def,
		minMessage:  "Minimum value " + strconv.FormatFloat(min, 'f', -1, 64),
	}
}

func tempField(name string, placeholder string, def float64) Field {
	f := minField(name, 500, placeholder, def)
	f.minMessage = "Minimum temperature 500 K"
	return f
}

func freeField(name string, placeholder string, def float64) Field {
	return Field{Name: name, Placeholder: placeholder, Default: def}
}

// Schema is an ordered set of fields for one variant
type Schema struct {
	variant Variant
	fields  []Field
}

var schemas = map[Variant]*Schema{
	VariantUser: {
		variant: VariantUser,
		fields: []Field{
			minField("orbital_period_days", 0.01, "365", 41.69),
			minField("transit_depth_ppm", 0.01, "1500", 0.1),
			minField("planet_radius_re", 0.01, "1.05", 2.58),
			minField("planet_mass_me", 0.01, "1.00", 22.25),
			tempField("stellar_teff_k", "5778", 5766.0),
			minField("stellar_radius_rsun", 0.01, "1.0", 1.0),
			minField("stellar_mass_msun", 0.01, "1.0", 1.0),
		},
	},
	VariantScientist: {
		variant: VariantScientist,
		fields: []Field{
			minField("orbital_period_days", 0.01, "289.9", 32.9),
			minField("transit_depth", 0.01, "192", 2140),
			minField("transit_duration", 0.01, "7.5", 3.84),
			minField("planet_radius_re", 0.01, "2.4", 2.37),
			minField("planet_mass_me", 0.01, "66.0", 8.92),
			tempField("stellar_teff_k", "5518", 3457.0),
			minField("stellar_radius_rsun", 0.01, "0.98", 0.469),
			minField("stellar_mass_msun", 0.01, "0.97", 0.495),
			minField("radius_ratio", 0.0001, "0.0245", 0.046263006396588494),
			minField("semi_major_axis_au", 0.01, "0.85", 0.1429),
			minField("equilibrium_temp_recalc_k", 0, "295", 276),
			freeField("log_orbital_period", "2.46", 1.5171958979499742),
			minField("period_mass_interaction", 0, "281.6", 293.368),
			tempField("stellar_teff_bin", "5518", 3457),
		},
	},
}

// Lookup returns the schema for a variant
func Lookup(v Variant) (*Schema, error) {
	s, ok := schemas[v]
	if !ok {
		return nil, fmt.Errorf("unknown form variant: %q", v)
	}
	return s, nil
}

// Variants lists the known variants in a stable order
func Variants() []Variant {
	return []Variant{VariantUser, VariantScientist}
}

// Variant returns the variant this schema describes
func (s *Schema) Variant() Variant {
	return s.variant
}

// Fields returns a copy of the ordered field definitions. Callers may
// modify the result without affecting validation.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		if f.Min != nil {
			min := *f.Min
			f.Min = &min
		}
		out[i] = f
	}
	return out
}

// Defaults returns the seed values the form starts with and resets to
func (s *Schema) Defaults() Input {
	in := make(Input, len(s.fields))
	for _, f := range s.fields {
		in[f.Name] = f.Default
	}
	return in
}

// Validate checks every field independently. On success the returned Input
// holds exactly the schema's fields with their values unchanged; otherwise
// the FieldErrors map is non-empty and the Input is nil.
func (s *Schema) Validate(raw map[string]any) (Input, FieldErrors) {
	in := make(Input, len(s.fields))
	var errs FieldErrors
	for _, f := range s.fields {
		val, present := raw[f.Name]
		v, msg := f.check(val, present)
		if msg != "" {
			if errs == nil {
				errs = make(FieldErrors)
			}
			errs[f.Name] = msg
			continue
		}
		in[f.Name] = v
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return in, nil
}

// Input is a validated submission, keyed by field name
type Input map[string]float64

// Raw converts the input back to the loosely typed form used by Validate
func (in Input) Raw() map[string]any {
	raw := make(map[string]any, len(in))
	for k, v := range in {
		raw[k] = v
	}
	return raw
}

// FieldErrors maps a field name to a human-readable message
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e[name])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
