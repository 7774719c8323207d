// Package features maps request fields onto the column layout the pipeline
// was fitted on. The table below is the only place that layout is defined.
package features

import (
	"math"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/model"
)

// Kind is the scalar type a request field is coerced to.
type Kind string

const (
	KindFloat   Kind = "number"
	KindInteger Kind = "integer"
)

// Column binds a request field to its training-time column.
type Column struct {
	Field  string `json:"field"`
	Column string `json:"column"`
	Kind   Kind   `json:"kind"`
}

// Schema is the fixed training-time order. Reordering it silently changes predictions.
var Schema = []Column{
	{Field: constants.FieldBankTransactionAverage, Column: constants.ColumnBankTransactionAverage, Kind: KindFloat},
	{Field: constants.FieldSocialMediaScreentime, Column: constants.ColumnSocialMediaScreentime, Kind: KindFloat},
	{Field: constants.FieldEcommerceScreenTime, Column: constants.ColumnEcommerceScreenTime, Kind: KindFloat},
	{Field: constants.FieldCIBILScore, Column: constants.ColumnCIBILScore, Kind: KindInteger},
	{Field: constants.FieldGeographicalMovement, Column: constants.ColumnGeographicalMovement, Kind: KindFloat},
	{Field: constants.FieldSocialMediaReach, Column: constants.ColumnSocialMediaReach, Kind: KindInteger},
}

// Columns returns the training-time column names in order.
func Columns() []string {
	cols := make([]string, len(Schema))
	for i, c := range Schema {
		cols[i] = c.Column
	}
	return cols
}

// Fields returns the request field names in column order.
func Fields() []string {
	fields := make([]string, len(Schema))
	for i, c := range Schema {
		fields[i] = c.Field
	}
	return fields
}

// Map builds the feature vector for a validated input.
func Map(in model.UserInput) model.FeatureVector {
	return model.FeatureVector{
		Columns: Columns(),
		Values: []float64{
			in.BankTransactionAverage,
			in.SocialMediaScreentime,
			in.EcommerceScreenTime,
			float64(in.CIBILScore),
			in.GeographicalMovement,
			float64(in.SocialMediaReach),
		},
	}
}

// MapPartial builds the feature vector for a lenient input. Absent fields
// become NaN; whether that is acceptable is decided by the pipeline.
func MapPartial(in model.PartialInput) model.FeatureVector {
	return model.FeatureVector{
		Columns: Columns(),
		Values: []float64{
			valueOrNaN(in.BankTransactionAverage),
			valueOrNaN(in.SocialMediaScreentime),
			valueOrNaN(in.EcommerceScreenTime),
			valueOrNaN(in.CIBILScore),
			valueOrNaN(in.GeographicalMovement),
			valueOrNaN(in.SocialMediaReach),
		},
	}
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// RequestSchema returns the JSON Schema (draft-07) of a coerced request body.
// Unknown properties are allowed and ignored.
func RequestSchema() map[string]any {
	props := make(map[string]any, len(Schema))
	for _, c := range Schema {
		props[c.Field] = map[string]any{
			"type":        string(c.Kind),
			"description": c.Column,
		}
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      "UserInput",
		"type":       "object",
		"required":   Fields(),
		"properties": props,
	}
}
