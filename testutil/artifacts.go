package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/model"
)

// Fitted scaler parameters of the fixture pipeline, in training column order.
var (
	FixtureMean  = []float64{40000, 4, 2, 650, 15, 1500}
	FixtureScale = []float64{20000, 2, 1, 100, 10, 1000}
)

// ApprovedInput is scored as class 1 by the fixture pipeline.
func ApprovedInput() model.UserInput {
	return model.UserInput{
		BankTransactionAverage: 50000,
		SocialMediaScreentime:  3.5,
		EcommerceScreenTime:    1.2,
		CIBILScore:             750,
		GeographicalMovement:   10,
		SocialMediaReach:       2000,
	}
}

// RejectedInput is scored as class 0 by the fixture pipeline.
func RejectedInput() model.UserInput {
	return model.UserInput{
		BankTransactionAverage: 10000,
		SocialMediaScreentime:  6,
		EcommerceScreenTime:    4,
		CIBILScore:             500,
		GeographicalMovement:   20,
		SocialMediaReach:       300,
	}
}

// StackedDocument returns the fixture pipeline: a standard scaler followed by a
// stacking classifier over a logistic regression, a decision tree and a random
// forest. With impute set, a mean imputer runs first and missing values are filled.
func StackedDocument(impute bool) map[string]any {
	steps := []map[string]any{}
	if impute {
		steps = append(steps, map[string]any{
			"type":       "simple_imputer",
			"statistics": FixtureMean,
		})
	}
	steps = append(steps, map[string]any{
		"type":  "standard_scaler",
		"mean":  FixtureMean,
		"scale": FixtureScale,
	})

	return map[string]any{
		"format":        constants.PipelineFormat,
		"name":          "stacked_ensemble_pipeline",
		"metadata":      map[string]string{"trained_on": "fixture"},
		"feature_names": features.Columns(),
		"classes":       []int{constants.ClassRejected, constants.ClassApproved},
		"steps":         steps,
		"estimator": map[string]any{
			"type": "stacking",
			"estimators": []map[string]any{
				{
					"type":      "logistic_regression",
					"coef":      []float64{1, 0, 0, 2, 0, 0},
					"intercept": 0,
				},
				{
					"type":  "decision_tree",
					"nodes": splitOn(3, []float64{8, 2}, []float64{1, 9}),
				},
				{
					"type": "random_forest",
					"trees": [][]map[string]any{
						splitOn(0, []float64{7, 3}, []float64{3, 7}),
						{leaf([]float64{1, 1})},
					},
				},
			},
			"final_estimator": map[string]any{
				"type":      "logistic_regression",
				"coef":      []float64{2, 2, 2},
				"intercept": -3,
			},
		},
	}
}

func splitOn(feature int, left, right []float64) []map[string]any {
	return []map[string]any{
		{"feature": feature, "threshold": 0, "left": 1, "right": 2},
		leaf(left),
		leaf(right),
	}
}

func leaf(value []float64) map[string]any {
	return map[string]any{"feature": -1, "threshold": 0, "left": -1, "right": -1, "value": value}
}

// StackedJSON marshals StackedDocument.
func StackedJSON(t testing.TB, impute bool) []byte {
	t.Helper()
	data, err := json.Marshal(StackedDocument(impute))
	if err != nil {
		t.Fatalf("marshal fixture pipeline: %v", err)
	}
	return data
}

// WriteArtifact writes data into a temp dir under name and returns the path.
func WriteArtifact(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// StackedArtifact writes the fixture pipeline to a temp file and returns its path.
func StackedArtifact(t testing.TB, impute bool) string {
	t.Helper()
	return WriteArtifact(t, "stacked_ensemble_pipeline.json", StackedJSON(t, impute))
}
