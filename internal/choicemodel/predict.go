package choicemodel

import (
	"strings"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
)

// Prediction holds one probability row per input observation. Columns are
// the choice values seen at fit time; every row sums to 1.
type Prediction struct {
	Choices []string    `json:"choices"`
	Probs   [][]float64 `json:"probs"`
}

// Column returns the probabilities of one choice across all rows.
func (p *Prediction) Column(choice string) ([]float64, error) {
	idx := -1
	for i, c := range p.Choices {
		if c == choice {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errs.Schema("%q is not a choice in the prediction table", choice)
	}
	out := make([]float64, len(p.Probs))
	for r, row := range p.Probs {
		out[r] = row[idx]
	}
	return out, nil
}

// Predict maps each observation to its fitted cell by longest matching
// covariate prefix and returns the cell's share vector as the predicted
// choice probabilities. Observations matching no prefix fall back to the
// ungrouped cell; if that cell was empty at fit time the prediction fails
// rather than returning undefined probabilities.
func (e *Estimator) Predict(cd *choicedata.ChoiceData) (*Prediction, error) {
	if err := e.checkFitted(); err != nil {
		return nil, err
	}
	cols, err := e.covariates(cd)
	if err != nil {
		return nil, err
	}
	n := cd.Len()
	k := len(e.cfg.CoefOrder)

	probs := make([][]float64, n)
	for i := 0; i < n; i++ {
		var cell []float64
		for depth := k; depth >= 1; depth-- {
			if row, ok := e.cells[cellKey{depth: depth, sig: signature(cols, i, depth)}]; ok {
				cell = row
				break
			}
		}
		if cell == nil {
			row, ok := e.cells[cellKey{depth: 0, sig: UngroupedKey}]
			if !ok {
				return nil, errs.State("observation %d (%s) matches no fitted cell and the model has no ungrouped cell",
					i, strings.ReplaceAll(signature(cols, i, k), sigSep, "|"))
			}
			cell = row
		}
		out := make([]float64, len(cell))
		copy(out, cell)
		probs[i] = out
	}
	return &Prediction{Choices: e.Choices(), Probs: probs}, nil
}
