package choicemodel

import (
	"math"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
	"choicemetrics/internal/logger"
)

// WTPResult aggregates willingness-to-pay for one hypothetical combination.
// Degenerate marks combinations where some choice probability reached 1, in
// which case the affected WTP values are +Inf and Change is undefined.
type WTPResult struct {
	Individual map[string]float64 `json:"individual"`
	Combined   float64            `json:"combined"`
	Change     float64            `json:"wtp_change"`
	Degenerate bool               `json:"degenerate,omitempty"`
}

// wtp is the logit inclusive-value transform -ln(1-p). It diverges to +Inf
// as p approaches 1.
func wtp(p float64) float64 {
	return -math.Log(1 - p)
}

// WTPChange computes the aggregate willingness-to-pay of each transaction's
// members and of the combined entity, and the relative change from
// combining them. Each transaction names >= 2 prediction columns.
func (e *Estimator) WTPChange(cd *choicedata.ChoiceData, pred *Prediction, transactions map[string][]string) (map[string]WTPResult, error) {
	if err := e.checkFitted(); err != nil {
		return nil, err
	}
	if pred == nil || len(pred.Probs) != cd.Len() {
		return nil, errs.Value("prediction table and dataset must have the same number of rows")
	}
	colIdx := make(map[string]int, len(pred.Choices))
	for i, c := range pred.Choices {
		colIdx[c] = i
	}
	for name, members := range transactions {
		if len(members) < 2 {
			return nil, errs.Value("transaction %q needs at least 2 choices", name)
		}
		for _, m := range members {
			if _, ok := colIdx[m]; !ok {
				return nil, errs.Schema("%q is not a choice in the prediction table", m)
			}
		}
	}

	log := logger.New().WithComponent("choicemodel.wtp")
	weights := cd.Weights()
	out := make(map[string]WTPResult, len(transactions))
	for name, members := range transactions {
		individual := make(map[string]float64, len(members))
		combined := 0.0
		degenerate := false
		for r, row := range pred.Probs {
			combinedProb := 0.0
			for _, m := range members {
				p := row[colIdx[m]]
				if p >= 1 {
					degenerate = true
				}
				individual[m] += weights[r] * wtp(p)
				combinedProb += p
			}
			if combinedProb >= 1 {
				degenerate = true
			}
			combined += weights[r] * wtp(combinedProb)
		}
		if degenerate {
			log.WithField("transaction", name).
				Warn("a choice probability equals 1; WTP for that entity is infinite")
		}
		sumIndividual := 0.0
		for _, v := range individual {
			sumIndividual += v
		}
		out[name] = WTPResult{
			Individual: individual,
			Combined:   combined,
			Change:     (combined - sumIndividual) / sumIndividual,
			Degenerate: degenerate,
		}
	}
	return out, nil
}
