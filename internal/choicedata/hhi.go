package choicedata

import (
	"choicemetrics/internal/errs"
)

// CombinedEntity labels the merged parties when simulating a transaction.
const CombinedEntity = "combined"

// CalculateHHI computes the Herfindahl-Hirschman Index of each share table,
// aggregated to the corp level. Scale is the conventional 0-10000.
func (cd *ChoiceData) CalculateHHI(tables map[string]ShareTable) (map[string]float64, error) {
	out := make(map[string]float64, len(tables))
	for key, t := range tables {
		hhi, err := hhiOf(t, key, nil)
		if err != nil {
			return nil, err
		}
		out[key] = hhi
	}
	return out, nil
}

// HHIDelta is the concentration effect of one hypothetical transaction on
// one market.
type HHIDelta struct {
	Pre    float64 `json:"pre_merger_hhi"`
	Post   float64 `json:"post_merger_hhi"`
	Change float64 `json:"hhi_change"`
}

// HHIChange simulates each named transaction (a set of >= 2 corp names that
// merge) against each share table and reports pre, post and delta HHI.
func (cd *ChoiceData) HHIChange(transactions map[string][]string, tables map[string]ShareTable) (map[string]map[string]HHIDelta, error) {
	corpVals, _ := cd.f.Column(cd.cfg.CorpVar)
	present := map[string]bool{}
	for _, c := range corpVals {
		present[c] = true
	}
	for name, members := range transactions {
		if len(members) < 2 {
			return nil, errs.Value("transaction %q needs at least 2 parties to compare HHI change", name)
		}
		for _, m := range members {
			if !present[m] {
				return nil, errs.Value("%q is not an element in column %q", m, cd.cfg.CorpVar)
			}
		}
	}

	out := make(map[string]map[string]HHIDelta, len(transactions))
	for name, members := range transactions {
		merged := map[string]bool{}
		for _, m := range members {
			merged[m] = true
		}
		perTable := make(map[string]HHIDelta, len(tables))
		for key, t := range tables {
			pre, err := hhiOf(t, key, nil)
			if err != nil {
				return nil, err
			}
			post, err := hhiOf(t, key, merged)
			if err != nil {
				return nil, err
			}
			perTable[key] = HHIDelta{Pre: pre, Post: post, Change: post - pre}
		}
		out[name] = perTable
	}
	return out, nil
}

// hhiOf sums squared corp-level percentage shares. Corps in merged are
// pooled into a single combined entity first.
func hhiOf(t ShareTable, name string, merged map[string]bool) (float64, error) {
	if err := CheckShares(t, name); err != nil {
		return 0, err
	}
	byCorp := map[string]float64{}
	for _, r := range t.Rows {
		corp := r.Corp
		if merged != nil && merged[corp] {
			corp = CombinedEntity
		}
		byCorp[corp] += r.Share
	}
	hhi := 0.0
	for _, s := range byCorp {
		hhi += s * s
	}
	return hhi * 10000, nil
}
