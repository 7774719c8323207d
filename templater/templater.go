// Package templater renders Jinja2-style (pongo2) templates for human-readable output.
package templater

import (
	"fmt"
	"maps"

	pongo2 "github.com/flosch/pongo2/v6"

	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/pipeline"
	"github.com/awantoch/loanscore/utils"
)

// Built-in templates used by the CLI's text output.
const (
	PredictionTemplate = `{% if approved %}APPROVED{% else %}REJECTED{% endif %} (prediction={{ prediction }}, approval probability {{ approval_probability|percent }})`

	InfoTemplate = `Pipeline:  {{ name|default:"(unnamed)" }}
Format:    {{ format }}
Features:  {{ num_features }}
{% for f in feature_names %}  {{ forloop.Counter }}. {{ f }}
{% endfor %}Steps:     {% if steps %}{{ steps|join:" -> " }}{% else %}(none){% endif %}
Estimator: {{ estimator }}
Classes:   {{ classes|join:", " }}`

	DecisionsTemplate = `{% for d in decisions %}{{ d.created_at }}  {{ d.id }}  {% if d.approved %}APPROVED{% else %}REJECTED{% endif %}  {{ d.approval_probability|percent }}  {{ d.channel|default:"-" }}
{% empty %}no decisions recorded
{% endfor %}`
)

func init() {
	_ = pongo2.RegisterFilter("percent", filterPercent)
}

// filterPercent formats a probability as a percentage with one decimal.
func filterPercent(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(fmt.Sprintf("%.1f%%", in.Float()*100)), nil
}

// Templater renders pongo2 templates.
type Templater struct{}

// NewTemplater creates a new Templater.
func NewTemplater() *Templater {
	return &Templater{}
}

// Render renders a template string with the provided data using pongo2.
func (t *Templater) Render(tmpl string, data map[string]any) (string, error) {
	if data == nil {
		return "", fmt.Errorf("template data is nil")
	}
	ctx := make(pongo2.Context, len(data))
	maps.Copy(ctx, data)
	utils.Debug("Templater.Render: tmpl = %q", tmpl)
	pl, err := pongo2.FromString(tmpl)
	if err != nil {
		return "", err
	}
	return pl.Execute(ctx)
}

// Render applies templating to the given string with the provided data.
func Render(tmpl string, data map[string]any) (string, error) {
	return NewTemplater().Render(tmpl, data)
}

// PredictionData exposes a prediction to templates.
func PredictionData(p model.Prediction) map[string]any {
	return map[string]any{
		"prediction":           p.Prediction,
		"approval_probability": p.ApprovalProbability,
		"approved":             p.Approved(),
	}
}

// InfoData exposes a pipeline summary to templates.
func InfoData(info pipeline.Info) map[string]any {
	return map[string]any{
		"name":          info.Name,
		"format":        info.Format,
		"metadata":      info.Metadata,
		"feature_names": info.FeatureNames,
		"num_features":  info.NumFeatures,
		"classes":       info.Classes,
		"steps":         info.Steps,
		"estimator":     info.Estimator,
	}
}

// DecisionsData exposes audited decisions to templates under "decisions".
func DecisionsData(decisions []*model.Decision) map[string]any {
	rows := make([]map[string]any, 0, len(decisions))
	for _, d := range decisions {
		row := PredictionData(d.Outcome())
		row["id"] = d.ID.String()
		row["request_id"] = d.RequestID
		row["channel"] = d.Channel
		row["pipeline"] = d.Pipeline
		row["created_at"] = d.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		rows = append(rows, row)
	}
	return map[string]any{"decisions": rows}
}
