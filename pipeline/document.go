package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	"gonum.org/v1/gonum/floats"

	"github.com/awantoch/loanscore/constants"
)

// Step and estimator type names as written in pipeline documents.
const (
	StepSimpleImputer  = "simple_imputer"
	StepStandardScaler = "standard_scaler"

	EstimatorLogisticRegression = "logistic_regression"
	EstimatorDecisionTree       = "decision_tree"
	EstimatorRandomForest       = "random_forest"
	EstimatorStacking           = "stacking"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Document is the exported form of a fitted pipeline.
type Document struct {
	Format       string            `json:"format"`
	Name         string            `json:"name,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	FeatureNames []string          `json:"feature_names,omitempty"`
	Classes      []int             `json:"classes,omitempty"`
	Steps        []StepSpec        `json:"steps,omitempty"`
	Estimator    EstimatorSpec     `json:"estimator"`
}

type StepSpec struct {
	Type       string    `json:"type"`
	Statistics []float64 `json:"statistics,omitempty"`
	Mean       []float64 `json:"mean,omitempty"`
	Scale      []float64 `json:"scale,omitempty"`
}

type EstimatorSpec struct {
	Type           string          `json:"type"`
	Coef           []float64       `json:"coef,omitempty"`
	Intercept      float64         `json:"intercept,omitempty"`
	Nodes          []TreeNode      `json:"nodes,omitempty"`
	Trees          [][]TreeNode    `json:"trees,omitempty"`
	Estimators     []EstimatorSpec `json:"estimators,omitempty"`
	FinalEstimator *EstimatorSpec  `json:"final_estimator,omitempty"`
	Passthrough    bool            `json:"passthrough,omitempty"`
}

// TreeNode is one node of a flattened decision tree. Value holds class counts
// or probabilities and is only read on leaves.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n TreeNode) isLeaf() bool {
	return n.Left == -1 && n.Right == -1
}

// Decode parses a pipeline document. name is the artifact file name or URL;
// a .yaml or .yml extension selects YAML, anything else is read as JSON.
// The document is validated against the embedded schema before decoding.
func Decode(data []byte, name string) (*Document, error) {
	if isYAML(name) {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", ErrUnsupportedFormat, err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", ErrUnsupportedFormat, err)
		}
		data = converted
	}
	if err := ValidateJSON(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return &doc, nil
}

// ValidateJSON checks raw document bytes against the embedded JSON schema.
func ValidateJSON(data []byte) error {
	schema, err := documentSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return nil
}

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("pipeline.schema.json", string(schemaJSON))
	})
	return compiledSchema, schemaErr
}

func isYAML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Compile turns a validated document into an evaluable pipeline.
func Compile(doc *Document) (*Compiled, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrUnsupportedFormat)
	}
	if doc.Format != constants.PipelineFormat {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedFormat, doc.Format)
	}
	classes := doc.Classes
	if len(classes) == 0 {
		classes = []int{constants.ClassRejected, constants.ClassApproved}
	}
	if len(classes) != 2 {
		return nil, fmt.Errorf("%w: binary pipelines need exactly 2 classes, got %d", ErrUnsupportedFormat, len(classes))
	}

	width := inferWidth(doc)
	if width <= 0 {
		return nil, fmt.Errorf("%w: cannot determine the number of input features", ErrUnsupportedFormat)
	}

	steps := make([]transform, 0, len(doc.Steps))
	for i, spec := range doc.Steps {
		step, err := compileStep(spec, width)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	est, err := compileEstimator(doc.Estimator, width)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}

	meta := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	return &Compiled{
		name:         doc.Name,
		format:       doc.Format,
		metadata:     meta,
		featureNames: append([]string(nil), doc.FeatureNames...),
		classes:      append([]int(nil), classes...),
		width:        width,
		steps:        steps,
		estimator:    est,
	}, nil
}

// inferWidth prefers explicit feature names, then the first step, then the estimator.
func inferWidth(doc *Document) int {
	if len(doc.FeatureNames) > 0 {
		return len(doc.FeatureNames)
	}
	if len(doc.Steps) > 0 {
		s := doc.Steps[0]
		switch s.Type {
		case StepSimpleImputer:
			return len(s.Statistics)
		case StepStandardScaler:
			return len(s.Mean)
		}
	}
	return estimatorWidth(doc.Estimator)
}

func estimatorWidth(spec EstimatorSpec) int {
	switch spec.Type {
	case EstimatorLogisticRegression:
		return len(spec.Coef)
	case EstimatorStacking:
		for _, base := range spec.Estimators {
			if w := estimatorWidth(base); w > 0 {
				return w
			}
		}
	}
	return 0
}

func compileStep(spec StepSpec, width int) (transform, error) {
	switch spec.Type {
	case StepSimpleImputer:
		if len(spec.Statistics) != width {
			return nil, fmt.Errorf("%w: imputer has %d statistics for %d features", ErrUnsupportedFormat, len(spec.Statistics), width)
		}
		if floats.HasNaN(spec.Statistics) {
			return nil, fmt.Errorf("%w: imputer statistics contain NaN", ErrUnsupportedFormat)
		}
		return simpleImputer{statistics: append([]float64(nil), spec.Statistics...)}, nil
	case StepStandardScaler:
		if len(spec.Mean) != width || len(spec.Scale) != width {
			return nil, fmt.Errorf("%w: scaler has %d means and %d scales for %d features", ErrUnsupportedFormat, len(spec.Mean), len(spec.Scale), width)
		}
		return standardScaler{
			mean:  append([]float64(nil), spec.Mean...),
			scale: append([]float64(nil), spec.Scale...),
		}, nil
	default:
		return nil, fmt.Errorf("%w: step type %q", ErrUnsupportedFormat, spec.Type)
	}
}

func compileEstimator(spec EstimatorSpec, width int) (estimator, error) {
	switch spec.Type {
	case EstimatorLogisticRegression:
		if len(spec.Coef) != width {
			return nil, fmt.Errorf("%w: logistic regression has %d coefficients for %d inputs", ErrUnsupportedFormat, len(spec.Coef), width)
		}
		return logisticRegression{coef: append([]float64(nil), spec.Coef...), intercept: spec.Intercept}, nil
	case EstimatorDecisionTree:
		return compileTree(spec.Nodes, width)
	case EstimatorRandomForest:
		if len(spec.Trees) == 0 {
			return nil, fmt.Errorf("%w: random forest without trees", ErrUnsupportedFormat)
		}
		forest := randomForest{trees: make([]decisionTree, 0, len(spec.Trees))}
		for i, nodes := range spec.Trees {
			tree, err := compileTree(nodes, width)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
			forest.trees = append(forest.trees, tree)
		}
		return forest, nil
	case EstimatorStacking:
		if len(spec.Estimators) == 0 || spec.FinalEstimator == nil {
			return nil, fmt.Errorf("%w: stacking needs base estimators and a final estimator", ErrUnsupportedFormat)
		}
		stack := stacking{passthrough: spec.Passthrough}
		for i, base := range spec.Estimators {
			est, err := compileEstimator(base, width)
			if err != nil {
				return nil, fmt.Errorf("base estimator %d: %w", i, err)
			}
			stack.estimators = append(stack.estimators, est)
		}
		metaWidth := len(spec.Estimators)
		if spec.Passthrough {
			metaWidth += width
		}
		final, err := compileEstimator(*spec.FinalEstimator, metaWidth)
		if err != nil {
			return nil, fmt.Errorf("final estimator: %w", err)
		}
		stack.final = final
		return stack, nil
	default:
		return nil, fmt.Errorf("%w: estimator type %q", ErrUnsupportedFormat, spec.Type)
	}
}

func compileTree(nodes []TreeNode, width int) (decisionTree, error) {
	if len(nodes) == 0 {
		return decisionTree{}, fmt.Errorf("%w: empty tree", ErrUnsupportedFormat)
	}
	compiled := make([]TreeNode, len(nodes))
	for i, n := range nodes {
		if n.isLeaf() {
			if len(n.Value) != 2 {
				return decisionTree{}, fmt.Errorf("%w: leaf %d needs 2 class values, got %d", ErrUnsupportedFormat, i, len(n.Value))
			}
			value := append([]float64(nil), n.Value...)
			sum := floats.Sum(value)
			if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
				return decisionTree{}, fmt.Errorf("%w: leaf %d has no class weight", ErrUnsupportedFormat, i)
			}
			floats.Scale(1/sum, value)
			n.Value = value
			compiled[i] = n
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return decisionTree{}, fmt.Errorf("%w: node %d splits on feature %d of %d", ErrUnsupportedFormat, i, n.Feature, width)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(nodes) || n.Right >= len(nodes) {
			return decisionTree{}, fmt.Errorf("%w: node %d has invalid children %d/%d", ErrUnsupportedFormat, i, n.Left, n.Right)
		}
		compiled[i] = n
	}
	return decisionTree{nodes: compiled}, nil
}
