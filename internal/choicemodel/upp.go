package choicemodel

import (
	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
)

// Entity carries the pricing inputs of one merging party. Name refers to
// the corp column.
type Entity struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Margin float64 `json:"margin"`
}

// UPPResult is the upward pricing pressure of a two-party transaction.
// AvgUPP blends the two parties by their total observed weight.
type UPPResult struct {
	EntityA string  `json:"entity_a"`
	EntityB string  `json:"entity_b"`
	UPPA    float64 `json:"upp_a"`
	UPPB    float64 `json:"upp_b"`
	AvgUPP  float64 `json:"avg_upp"`
}

func validateEntity(cd *choicedata.ChoiceData, ent Entity) error {
	if ent.Name == "" {
		return errs.Value("entity name is required")
	}
	if _, err := cd.ChoiceSet(ent.Name); err != nil {
		return err
	}
	if ent.Price <= 0 {
		return errs.Value("entity %q price must be positive, got %v", ent.Name, ent.Price)
	}
	if ent.Margin <= 0 {
		return errs.Value("entity %q margin must be positive, got %v", ent.Name, ent.Margin)
	}
	return nil
}

// UPP computes upward pricing pressure for two entities from their diversion
// shares, prices and margins: upp_A = div(A->B) * margin_B * price_B /
// price_A, and symmetrically for B.
func (e *Estimator) UPP(cd *choicedata.ChoiceData, a, b Entity, div *DiversionTable) (UPPResult, error) {
	if err := e.checkFitted(); err != nil {
		return UPPResult{}, err
	}
	if div == nil {
		return UPPResult{}, errs.Value("diversion table is required")
	}
	for _, ent := range []Entity{a, b} {
		if err := validateEntity(cd, ent); err != nil {
			return UPPResult{}, err
		}
		if _, ok := div.Shares[ent.Name]; !ok {
			return UPPResult{}, errs.Value("%q is not a diversion target in the table", ent.Name)
		}
	}

	setA, _ := cd.ChoiceSet(a.Name)
	setB, _ := cd.ChoiceSet(b.Name)
	divAtoB := sumOver(div, a.Name, setB)
	divBtoA := sumOver(div, b.Name, setA)

	uppA := divAtoB * b.Margin * b.Price / a.Price
	uppB := divBtoA * a.Margin * a.Price / b.Price

	obsA := cd.TotalWeight(a.Name)
	obsB := cd.TotalWeight(b.Name)
	return UPPResult{
		EntityA: a.Name,
		EntityB: b.Name,
		UPPA:    uppA,
		UPPB:    uppB,
		AvgUPP:  (uppA*obsA + uppB*obsB) / (obsA + obsB),
	}, nil
}

// sumOver sums the diversion shares from target over a set of choices.
func sumOver(div *DiversionTable, target string, choices []string) float64 {
	member := make(map[string]bool, len(choices))
	for _, c := range choices {
		member[c] = true
	}
	row := div.Shares[target]
	total := 0.0
	for i, c := range div.Choices {
		if member[c] {
			total += row[i]
		}
	}
	return total
}
