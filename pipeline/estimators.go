package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

type estimator interface {
	// proba returns [P(classes[0]), P(classes[1])].
	proba(x []float64) ([]float64, error)
	describe() string
}

type logisticRegression struct {
	coef      []float64
	intercept float64
}

func (l logisticRegression) proba(x []float64) ([]float64, error) {
	if len(x) != len(l.coef) {
		return nil, fmt.Errorf("%w: logistic regression expects %d inputs, got %d", ErrShapeMismatch, len(l.coef), len(x))
	}
	p := sigmoid(floats.Dot(l.coef, x) + l.intercept)
	return []float64{1 - p, p}, nil
}

func (logisticRegression) describe() string { return EstimatorLogisticRegression }

// decisionTree is a flattened binary tree: node 0 is the root, a node with
// left == right == -1 is a leaf whose value holds class probabilities.
type decisionTree struct {
	nodes []TreeNode
}

var errTreeState = errors.New("invalid tree state")

func (t decisionTree) proba(x []float64) ([]float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.nodes); steps++ {
		node := t.nodes[idx]
		if node.isLeaf() {
			return append([]float64(nil), node.Value...), nil
		}
		if node.Feature < 0 || node.Feature >= len(x) {
			return nil, fmt.Errorf("%w: feature index %d out of range", ErrShapeMismatch, node.Feature)
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		if idx < 0 || idx >= len(t.nodes) {
			return nil, errTreeState
		}
	}
	return nil, errTreeState
}

func (decisionTree) describe() string { return EstimatorDecisionTree }

// randomForest averages the class probabilities of its trees.
type randomForest struct {
	trees []decisionTree
}

func (f randomForest) proba(x []float64) ([]float64, error) {
	acc := make([]float64, 2)
	for _, tree := range f.trees {
		p, err := tree.proba(x)
		if err != nil {
			return nil, err
		}
		floats.Add(acc, p)
	}
	floats.Scale(1/float64(len(f.trees)), acc)
	return acc, nil
}

func (f randomForest) describe() string {
	return fmt.Sprintf("%s[%d]", EstimatorRandomForest, len(f.trees))
}

// stacking feeds the positive-class probability of every base estimator,
// optionally followed by the raw input, to the final estimator.
type stacking struct {
	estimators  []estimator
	final       estimator
	passthrough bool
}

func (s stacking) proba(x []float64) ([]float64, error) {
	meta := make([]float64, 0, len(s.estimators)+len(x))
	for i, est := range s.estimators {
		p, err := est.proba(x)
		if err != nil {
			return nil, fmt.Errorf("base estimator %d: %w", i, err)
		}
		meta = append(meta, p[1])
	}
	if s.passthrough {
		meta = append(meta, x...)
	}
	p, err := s.final.proba(meta)
	if err != nil {
		return nil, fmt.Errorf("final estimator: %w", err)
	}
	return p, nil
}

func (s stacking) describe() string {
	names := make([]string, len(s.estimators))
	for i, est := range s.estimators {
		names[i] = est.describe()
	}
	return fmt.Sprintf("%s(%s) -> %s", EstimatorStacking, strings.Join(names, ", "), s.final.describe())
}
