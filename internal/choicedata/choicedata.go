// Package choicedata wraps a customer-choice dataset and the column roles
// needed for merger analysis: the chosen entity, its corporate parent, an
// optional geography and an optional observation weight. It provides the
// service-area, market-share and concentration computations; the discrete
// choice estimator in internal/choicemodel consumes it for everything else.
package choicedata

import (
	"sort"
	"strconv"

	"choicemetrics/internal/errs"
	"choicemetrics/internal/frame"
)

// Config names the dataset columns. CorpVar defaults to ChoiceVar; GeogVar
// and WeightVar are optional.
type Config struct {
	ChoiceVar string
	CorpVar   string
	GeogVar   string
	WeightVar string
}

type ChoiceData struct {
	f   *frame.Frame
	cfg Config
}

// New validates the frame against the column config. The derived CorpVar
// default is computed here once; cfg is stored immutably.
func New(f *frame.Frame, cfg Config) (*ChoiceData, error) {
	if cfg.ChoiceVar == "" {
		return nil, errs.Config("choice_var is required")
	}
	if cfg.CorpVar == "" {
		cfg.CorpVar = cfg.ChoiceVar
	}
	if f == nil || f.Len() == 0 {
		return nil, errs.Value("dataset is empty")
	}
	for _, col := range []string{cfg.ChoiceVar, cfg.CorpVar, cfg.GeogVar, cfg.WeightVar} {
		if col != "" && !f.Has(col) {
			return nil, errs.Schema("%q is not a column in the dataset", col)
		}
	}
	for _, col := range []string{cfg.ChoiceVar, cfg.CorpVar} {
		vals, err := f.Column(col)
		if err != nil {
			return nil, err
		}
		for r, v := range vals {
			if v == "" {
				return nil, errs.Value("column %q has a missing value at row %d", col, r)
			}
		}
	}
	if cfg.WeightVar != "" {
		ws, err := f.Floats(cfg.WeightVar)
		if err != nil {
			return nil, err
		}
		for r, w := range ws {
			if w <= 0 {
				return nil, errs.Value("weight column %q row %d: %v is not positive", cfg.WeightVar, r, w)
			}
		}
	}
	return &ChoiceData{f: f, cfg: cfg}, nil
}

func (cd *ChoiceData) Frame() *frame.Frame { return cd.f }
func (cd *ChoiceData) Config() Config      { return cd.cfg }
func (cd *ChoiceData) Len() int            { return cd.f.Len() }

// HasCorp reports whether a corporate grouping distinct from the choice
// column is configured.
func (cd *ChoiceData) HasCorp() bool { return cd.cfg.CorpVar != cd.cfg.ChoiceVar }

// Weights returns the per-observation weights, defaulting to 1.
func (cd *ChoiceData) Weights() []float64 {
	if cd.cfg.WeightVar == "" {
		ws := make([]float64, cd.f.Len())
		for i := range ws {
			ws[i] = 1
		}
		return ws
	}
	ws, _ := cd.f.Floats(cd.cfg.WeightVar) // validated at New
	return ws
}

// Restrict returns a new ChoiceData over the rows where mask is true.
func (cd *ChoiceData) Restrict(mask []bool) (*ChoiceData, error) {
	sub, err := cd.f.Filter(mask)
	if err != nil {
		return nil, err
	}
	if sub.Len() == 0 {
		return nil, errs.Value("restriction leaves no rows")
	}
	return &ChoiceData{f: sub, cfg: cd.cfg}, nil
}

// CorpMap returns each corporation's distinct choices, sorted. It is only
// meaningful when a separate corp column is configured.
func (cd *ChoiceData) CorpMap() (map[string][]string, error) {
	if !cd.HasCorp() {
		return nil, errs.State("corp map requires corp_var distinct from choice_var")
	}
	corps, _ := cd.f.Column(cd.cfg.CorpVar)
	choices, _ := cd.f.Column(cd.cfg.ChoiceVar)
	seen := map[string]map[string]struct{}{}
	for i, corp := range corps {
		if seen[corp] == nil {
			seen[corp] = map[string]struct{}{}
		}
		seen[corp][choices[i]] = struct{}{}
	}
	out := make(map[string][]string, len(seen))
	for corp, set := range seen {
		members := make([]string, 0, len(set))
		for c := range set {
			members = append(members, c)
		}
		sort.Strings(members)
		out[corp] = members
	}
	return out, nil
}

// ChoiceSet returns the choice values belonging to one corporation. When no
// corp grouping is configured the name is its own (only) member; the name
// must still appear in the data.
func (cd *ChoiceData) ChoiceSet(name string) ([]string, error) {
	if !cd.HasCorp() {
		vals, _ := cd.f.Column(cd.cfg.CorpVar)
		for _, v := range vals {
			if v == name {
				return []string{name}, nil
			}
		}
		return nil, errs.Value("%q is not in column %q", name, cd.cfg.CorpVar)
	}
	cm, err := cd.CorpMap()
	if err != nil {
		return nil, err
	}
	members, ok := cm[name]
	if !ok {
		return nil, errs.Value("%q is not in column %q", name, cd.cfg.CorpVar)
	}
	return members, nil
}

// TotalWeight sums the weights of observations whose corp column equals name
// (row count when unweighted).
func (cd *ChoiceData) TotalWeight(name string) float64 {
	corps, _ := cd.f.Column(cd.cfg.CorpVar)
	ws := cd.Weights()
	total := 0.0
	for i, corp := range corps {
		if corp == name {
			total += ws[i]
		}
	}
	return total
}

// Summary describes a loaded dataset; logged at service startup.
type Summary struct {
	Rows        int     `json:"rows"`
	Choices     int     `json:"choices"`
	Corps       int     `json:"corps"`
	Geographies int     `json:"geographies"`
	TotalWeight float64 `json:"total_weight"`
}

func (cd *ChoiceData) Summarize() Summary {
	s := Summary{Rows: cd.f.Len()}
	if u, err := cd.f.Unique(cd.cfg.ChoiceVar); err == nil {
		s.Choices = len(u)
	}
	if u, err := cd.f.Unique(cd.cfg.CorpVar); err == nil {
		s.Corps = len(u)
	}
	if cd.cfg.GeogVar != "" {
		if u, err := cd.f.Unique(cd.cfg.GeogVar); err == nil {
			s.Geographies = len(u)
		}
	}
	for _, w := range cd.Weights() {
		s.TotalWeight += w
	}
	return s
}

// formatThreshold renders a PSA threshold the way it appears in result keys:
// minimal digits, so 0.75 stays "0.75" and 0.9 stays "0.9".
func formatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'g', -1, 64)
}
