package choicedata

import (
	"math"
	"sort"

	"choicemetrics/internal/errs"
)

// ShareRow is one choice's volume and share of the market. Corp repeats the
// choice value when no corp grouping is configured.
type ShareRow struct {
	Corp   string  `json:"corp"`
	Choice string  `json:"choice"`
	Weight float64 `json:"weight"`
	Share  float64 `json:"share"`
}

// ShareTable is a market-share table whose Share column sums to 1.
type ShareTable struct {
	Rows []ShareRow `json:"rows"`
}

// BaseSharesKey labels the share table computed over the full dataset.
const BaseSharesKey = "Base Shares"

const shareTol = 1e-9

// CalculateShares builds a share table per PSA entry, or a single
// "Base Shares" table over the whole dataset when psa is nil. Each PSA entry
// restricts the data to its geography list before shares are computed.
func (cd *ChoiceData) CalculateShares(psa map[string][]string) (map[string]ShareTable, error) {
	if psa == nil {
		t, err := cd.shareTable(nil)
		if err != nil {
			return nil, err
		}
		return map[string]ShareTable{BaseSharesKey: t}, nil
	}
	if cd.cfg.GeogVar == "" {
		return nil, errs.Schema("geog_var is not defined")
	}
	out := make(map[string]ShareTable, len(psa))
	for key, geos := range psa {
		t, err := cd.shareTable(geos)
		if err != nil {
			return nil, err
		}
		out[key] = t
	}
	return out, nil
}

func (cd *ChoiceData) shareTable(geos []string) (ShareTable, error) {
	corps, _ := cd.f.Column(cd.cfg.CorpVar)
	choices, _ := cd.f.Column(cd.cfg.ChoiceVar)
	ws := cd.Weights()

	keep := func(int) bool { return true }
	if geos != nil {
		col, err := cd.f.Column(cd.cfg.GeogVar)
		if err != nil {
			return ShareTable{}, err
		}
		present := map[string]bool{}
		for _, g := range col {
			present[g] = true
		}
		inPSA := map[string]bool{}
		for _, g := range geos {
			if !present[g] {
				return ShareTable{}, errs.Value("%q is not in column %q", g, cd.cfg.GeogVar)
			}
			inPSA[g] = true
		}
		keep = func(i int) bool { return inPSA[col[i]] }
	}

	type pair struct{ corp, choice string }
	sums := map[pair]float64{}
	total := 0.0
	for i := range choices {
		if !keep(i) {
			continue
		}
		sums[pair{corps[i], choices[i]}] += ws[i]
		total += ws[i]
	}
	if total == 0 {
		return ShareTable{}, errs.Value("no observations left after restriction")
	}

	rows := make([]ShareRow, 0, len(sums))
	for p, w := range sums {
		rows = append(rows, ShareRow{Corp: p.corp, Choice: p.choice, Weight: w, Share: w / total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Corp != rows[j].Corp {
			return rows[i].Corp < rows[j].Corp
		}
		return rows[i].Choice < rows[j].Choice
	})
	return ShareTable{Rows: rows}, nil
}

// CheckShares verifies a share table is well formed: no negative shares and
// a share column summing to 1.
func CheckShares(t ShareTable, name string) error {
	sum := 0.0
	for _, r := range t.Rows {
		if r.Share < 0 {
			return errs.Value("shares in %q contain negative values", name)
		}
		sum += r.Share
	}
	if math.Abs(sum-1) > shareTol {
		return errs.Value("shares in %q sum to %v, not 1", name, sum)
	}
	return nil
}
