package choicemodel

import (
	"gonum.org/v1/gonum/floats"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
)

// DiversionTable maps each diversion target to the share of its volume that
// would shift to every other observed choice if the target were unavailable.
// Shares rows align with Choices; entries for a target's own members are 0
// and each target's shares over the remaining choices sum to 1.
type DiversionTable struct {
	Choices []string             `json:"choices"`
	Shares  map[string][]float64 `json:"shares"`
}

// Share returns the diversion share from target to one choice.
func (d *DiversionTable) Share(target, choice string) (float64, error) {
	row, ok := d.Shares[target]
	if !ok {
		return 0, errs.Value("%q is not a diversion target in the table", target)
	}
	for i, c := range d.Choices {
		if c == choice {
			return row[i], nil
		}
	}
	return 0, errs.Value("%q is not a choice in the diversion table", choice)
}

// Diversion aggregates the prediction rows of customers observed choosing
// each target into normalized diversion shares. Target membership comes
// from the corp mapping, or from altVar's values when supplied, or the
// literal target value when no corp grouping exists.
func (e *Estimator) Diversion(cd *choicedata.ChoiceData, pred *Prediction, targets []string, altVar string) (*DiversionTable, error) {
	if err := e.checkFitted(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errs.Value("targets must have at least one element")
	}
	if pred == nil || len(pred.Probs) != cd.Len() {
		return nil, errs.Value("prediction table and dataset must have the same number of rows")
	}

	observedVar := cd.Config().ChoiceVar
	if altVar != "" {
		if !cd.Frame().Has(altVar) {
			return nil, errs.Schema("%q is not a column in the dataset", altVar)
		}
		observedVar = altVar
	}
	observed, err := cd.Frame().Column(observedVar)
	if err != nil {
		return nil, err
	}
	universe, _ := cd.Frame().Unique(observedVar)

	colIdx := make(map[string]int, len(pred.Choices))
	for i, c := range pred.Choices {
		colIdx[c] = i
	}
	for _, c := range universe {
		if _, ok := colIdx[c]; !ok {
			return nil, errs.Schema("%q is not a column in the prediction table", c)
		}
	}
	uniIdx := make(map[string]int, len(universe))
	for i, c := range universe {
		uniIdx[c] = i
	}

	weights := cd.Weights()
	shares := make(map[string][]float64, len(targets))
	for _, target := range targets {
		var members []string
		if altVar != "" {
			members = []string{target}
		} else {
			members, err = cd.ChoiceSet(target)
			if err != nil {
				return nil, err
			}
		}
		member := make(map[string]bool, len(members))
		for _, m := range members {
			member[m] = true
		}

		acc := make([]float64, len(universe))
		for r, choice := range observed {
			if !member[choice] {
				continue
			}
			row := pred.Probs[r]
			rowSum := 0.0
			for _, c := range universe {
				if !member[c] {
					rowSum += row[colIdx[c]]
				}
			}
			if rowSum <= 0 {
				// all predicted mass sits on the target itself; nothing diverts
				continue
			}
			for i, c := range universe {
				if !member[c] {
					acc[i] += row[colIdx[c]] / rowSum * weights[r]
				}
			}
		}
		total := floats.Sum(acc)
		if total <= 0 {
			return nil, errs.Value("no diversion volume observed for target %q", target)
		}
		floats.Scale(1/total, acc)
		shares[target] = acc
	}
	return &DiversionTable{Choices: universe, Shares: shares}, nil
}
