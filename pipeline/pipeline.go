// Package pipeline evaluates exported, already-fitted classification pipelines.
//
// A pipeline is an ordered list of transforms followed by a binary classifier.
// Compiled pipelines never change after Compile returns, so one instance can
// serve any number of concurrent callers.
package pipeline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrMissingValue is returned when a NaN reaches an estimator.
	ErrMissingValue = errors.New("input contains NaN")
	// ErrShapeMismatch is returned when a row does not have the fitted width.
	ErrShapeMismatch = errors.New("input shape mismatch")
	// ErrUnsupportedFormat is returned for documents this package cannot evaluate.
	ErrUnsupportedFormat = errors.New("unsupported pipeline document")
	// ErrNonFinite is returned when an estimator yields a NaN probability,
	// e.g. when extreme inputs overflow a linear model.
	ErrNonFinite = errors.New("pipeline produced a non-finite probability")
	// ErrFeatureNames is returned when the fitted column names differ from the expected ones.
	ErrFeatureNames = errors.New("feature names do not match the fitted pipeline")
)

// Pipeline is the inference surface of a fitted classifier.
type Pipeline interface {
	// Predict returns one class label per row.
	Predict(rows [][]float64) ([]int, error)
	// PredictProba returns one probability vector per row, ordered like Classes.
	PredictProba(rows [][]float64) ([][]float64, error)
}

// Compiled is a Pipeline built from a Document.
type Compiled struct {
	name         string
	format       string
	metadata     map[string]string
	featureNames []string
	classes      []int
	width        int
	steps        []transform
	estimator    estimator
}

var _ Pipeline = (*Compiled)(nil)

// Predict returns classes[argmax(proba)] for every row.
func (c *Compiled) Predict(rows [][]float64) ([]int, error) {
	probas, err := c.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(probas))
	for i, p := range probas {
		labels[i] = c.classes[floats.MaxIdx(p)]
	}
	return labels, nil
}

// PredictProba runs every transform then the estimator on each row.
func (c *Compiled) PredictProba(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != c.width {
			return nil, fmt.Errorf("%w: row %d has %d features, pipeline expects %d", ErrShapeMismatch, i, len(row), c.width)
		}
		x := append([]float64(nil), row...)
		for _, step := range c.steps {
			x = step.apply(x)
		}
		if floats.HasNaN(x) {
			return nil, fmt.Errorf("%w: row %d", ErrMissingValue, i)
		}
		p, err := c.estimator.proba(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if floats.HasNaN(p) {
			return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
		out[i] = p
	}
	return out, nil
}

// CheckFeatures fails with ErrFeatureNames when the document carries column
// names that are not exactly expected, in the same order.
func (c *Compiled) CheckFeatures(expected []string) error {
	if len(c.featureNames) == 0 {
		if c.width != len(expected) {
			return fmt.Errorf("%w: pipeline expects %d features, mapping produces %d", ErrFeatureNames, c.width, len(expected))
		}
		return nil
	}
	if len(c.featureNames) != len(expected) {
		return fmt.Errorf("%w: fitted on %d columns, mapping produces %d", ErrFeatureNames, len(c.featureNames), len(expected))
	}
	for i := range expected {
		if c.featureNames[i] != expected[i] {
			return fmt.Errorf("%w: column %d is %q, mapping produces %q", ErrFeatureNames, i, c.featureNames[i], expected[i])
		}
	}
	return nil
}

// NumFeatures is the row width the pipeline was fitted on.
func (c *Compiled) NumFeatures() int {
	return c.width
}

// Classes returns the class labels in probability-column order.
func (c *Compiled) Classes() []int {
	return append([]int(nil), c.classes...)
}

// Info summarizes a compiled pipeline.
type Info struct {
	Name         string            `json:"name"`
	Format       string            `json:"format"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	FeatureNames []string          `json:"feature_names,omitempty"`
	NumFeatures  int               `json:"num_features"`
	Classes      []int             `json:"classes"`
	Steps        []string          `json:"steps"`
	Estimator    string            `json:"estimator"`
}

// Info describes the pipeline for humans and health endpoints.
func (c *Compiled) Info() Info {
	steps := make([]string, len(c.steps))
	for i, s := range c.steps {
		steps[i] = s.kind()
	}
	meta := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		meta[k] = v
	}
	return Info{
		Name:         c.name,
		Format:       c.format,
		Metadata:     meta,
		FeatureNames: append([]string(nil), c.featureNames...),
		NumFeatures:  c.width,
		Classes:      c.Classes(),
		Steps:        steps,
		Estimator:    c.estimator.describe(),
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
