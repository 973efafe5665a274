package explain

import (
	"time"

	"github.com/veridex-labs/veridex/internal/model"
)

// Export builds an analytics dataset from the retained explanations, newest
// first. limit <= 0 exports the full retained history. The binary target is
// 1 for APPROVED sessions.
func (e *Engine) Export(limit int, format model.ExportFormat) model.Dataset {
	if format != model.ExportFlat {
		format = model.ExportStructured
	}

	e.mu.Lock()
	n := len(e.history)
	if limit > 0 && limit < n {
		n = limit
	}
	selected := make([]*model.Explanation, 0, n)
	for i := len(e.history) - 1; i >= 0 && len(selected) < n; i-- {
		selected = append(selected, e.history[i])
	}
	e.mu.Unlock()

	ds := model.Dataset{
		Meta: model.DatasetMeta{
			SampleCount: len(selected),
			GeneratedAt: time.Now().UTC(),
			Format:      format,
		},
	}

	for _, exp := range selected {
		target := 0
		if exp.FinalDecision == model.DecisionApproved {
			target = 1
			ds.Meta.Approved++
		} else {
			ds.Meta.Rejected++
		}

		switch format {
		case model.ExportFlat:
			ds.FeatureMatrix = append(ds.FeatureMatrix, exp.Features)
			ds.Targets = append(ds.Targets, target)
		default:
			ds.Rows = append(ds.Rows, model.DatasetRow{
				Features:     exp.Features,
				Target:       target,
				Confidence:   exp.WeightedConfidence,
				AnomalyScore: exp.AnomalyScore,
			})
		}
	}
	return ds
}
