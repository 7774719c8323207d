package model

import (
	"math"
)

// UserInput is the six-field request body of the prediction endpoint.
type UserInput struct {
	BankTransactionAverage float64 `json:"bank_transaction_average" yaml:"bank_transaction_average"`
	SocialMediaScreentime  float64 `json:"social_media_screentime" yaml:"social_media_screentime"`
	EcommerceScreenTime    float64 `json:"ecommerce_screen_time" yaml:"ecommerce_screen_time"`
	CIBILScore             int64   `json:"cibil_score" yaml:"cibil_score"`
	GeographicalMovement   float64 `json:"geographical_movement" yaml:"geographical_movement"`
	SocialMediaReach       int64   `json:"social_media_reach" yaml:"social_media_reach"`
}

// PartialInput is the lenient form used by the function handler: absent keys
// and JSON nulls stay nil and reach the pipeline as missing values.
type PartialInput struct {
	BankTransactionAverage *float64 `json:"bank_transaction_average"`
	SocialMediaScreentime  *float64 `json:"social_media_screentime"`
	EcommerceScreenTime    *float64 `json:"ecommerce_screen_time"`
	CIBILScore             *float64 `json:"cibil_score"`
	GeographicalMovement   *float64 `json:"geographical_movement"`
	SocialMediaReach       *float64 `json:"social_media_reach"`
}

// FeatureVector is a single row labelled with training-time column names.
// Missing values are NaN.
type FeatureVector struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"-"`
}

// Len returns the number of columns.
func (f FeatureVector) Len() int {
	return len(f.Values)
}

// Row returns a copy of the values, safe to hand to a pipeline.
func (f FeatureVector) Row() []float64 {
	return append([]float64(nil), f.Values...)
}

// Missing lists the columns whose value is absent.
func (f FeatureVector) Missing() []string {
	var missing []string
	for i, v := range f.Values {
		if math.IsNaN(v) && i < len(f.Columns) {
			missing = append(missing, f.Columns[i])
		}
	}
	return missing
}

// Prediction is the response body of every transport.
type Prediction struct {
	Prediction          int     `json:"prediction"`
	ApprovalProbability float64 `json:"approval_probability"`
}

// Approved reports whether the label is the positive class.
func (p Prediction) Approved() bool {
	return p.Prediction == 1
}
