// Package choicemodel implements the semiparametric discrete choice
// estimator and its post-estimation analyses: diversion ratios, willingness
// to pay changes and upward pricing pressure.
//
// The estimator partitions observations into cells by an ordered list of
// categorical covariates. Fitting starts from the finest grouping (all
// covariates) and progressively drops the rightmost covariate, so an
// observation lands in the most detailed cell that still carries at least
// MinBin weight. Each cell's empirical choice shares become the predicted
// choice probabilities for observations matching that cell.
package choicemodel

import (
	"strings"

	"gonum.org/v1/gonum/floats"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
)

// SolverSemiparametric is the only supported solver.
const SolverSemiparametric = "semiparametric"

// UngroupedKey labels the catch-all cell for observations that never reach
// an eligible group.
const UngroupedKey = "ungrouped"

// sigSep joins covariate values into a cell signature. Fit rejects values
// containing it, so two distinct value tuples can never collide.
const sigSep = "\x1f"

// Config configures an Estimator. CoefOrder lists covariates coarsest
// first; MinBin is the minimum cumulative weight a cell must carry.
type Config struct {
	Solver    string
	CoefOrder []string
	MinBin    float64
}

// cellKey identifies a fitted cell by prefix length and value signature.
// The ungrouped sentinel uses depth 0.
type cellKey struct {
	depth int
	sig   string
}

// Estimator fits and applies the discrete choice model. The fitted cell
// table is written once by Fit and read-only afterwards.
type Estimator struct {
	cfg       Config
	fitted    bool
	usedCorp  bool
	choices   []string
	choiceIdx map[string]int
	cells     map[cellKey][]float64
}

// New validates the configuration and returns an unfitted estimator.
func New(cfg Config) (*Estimator, error) {
	if cfg.Solver == "" {
		cfg.Solver = SolverSemiparametric
	}
	if cfg.Solver != SolverSemiparametric {
		return nil, errs.Config("%q is not a supported solver; supported solvers are [%s]", cfg.Solver, SolverSemiparametric)
	}
	if len(cfg.CoefOrder) == 0 {
		return nil, errs.Config("coef_order must be a non-empty list")
	}
	if cfg.MinBin <= 0 {
		return nil, errs.Config("min_bin must be greater than 0, got %v", cfg.MinBin)
	}
	return &Estimator{cfg: cfg}, nil
}

func (e *Estimator) Config() Config { return e.cfg }

// UsedCorp reports whether the model was fitted on the corp column.
func (e *Estimator) UsedCorp() bool { return e.usedCorp }

// Choices returns the choice values seen at fit time, in cell-table column
// order.
func (e *Estimator) Choices() []string {
	out := make([]string, len(e.choices))
	copy(out, e.choices)
	return out
}

func (e *Estimator) checkFitted() error {
	if !e.fitted {
		return errs.State("estimator is not fitted")
	}
	return nil
}

// covariates loads the CoefOrder columns and verifies none of their values
// contains the signature separator.
func (e *Estimator) covariates(cd *choicedata.ChoiceData) ([][]string, error) {
	cols := make([][]string, len(e.cfg.CoefOrder))
	for j, name := range e.cfg.CoefOrder {
		col, err := cd.Frame().Column(name)
		if err != nil {
			return nil, err
		}
		for r, v := range col {
			if strings.Contains(v, sigSep) {
				return nil, errs.Value("covariate %q row %d contains a reserved separator byte", name, r)
			}
		}
		cols[j] = col
	}
	return cols, nil
}

// signature joins the first depth covariate values of one observation.
func signature(cols [][]string, row, depth int) string {
	parts := make([]string, depth)
	for j := 0; j < depth; j++ {
		parts[j] = cols[j][row]
	}
	return strings.Join(parts, sigSep)
}

// Fit estimates the cell table from the dataset. The choice column is the
// corp column when useCorp is set. Every observation ends up in exactly one
// cell; leftovers share the ungrouped cell, which is omitted when empty.
func (e *Estimator) Fit(cd *choicedata.ChoiceData, useCorp bool) error {
	choiceVar := cd.Config().ChoiceVar
	if useCorp {
		choiceVar = cd.Config().CorpVar
	}
	cols, err := e.covariates(cd)
	if err != nil {
		return err
	}
	chosen, err := cd.Frame().Column(choiceVar)
	if err != nil {
		return err
	}
	weights := cd.Weights()
	n := cd.Len()
	k := len(e.cfg.CoefOrder)

	choices, _ := cd.Frame().Unique(choiceVar)
	choiceIdx := make(map[string]int, len(choices))
	for i, c := range choices {
		choiceIdx[c] = i
	}

	// assign each observation to its finest sufficiently heavy cell
	assigned := make([]cellKey, n)
	grouped := make([]bool, n)
	for depth := k; depth >= 1; depth-- {
		sums := map[string]float64{}
		for i := 0; i < n; i++ {
			if grouped[i] {
				continue
			}
			sums[signature(cols, i, depth)] += weights[i]
		}
		for i := 0; i < n; i++ {
			if grouped[i] {
				continue
			}
			sig := signature(cols, i, depth)
			if sums[sig] >= e.cfg.MinBin {
				assigned[i] = cellKey{depth: depth, sig: sig}
				grouped[i] = true
			}
		}
	}
	for i := 0; i < n; i++ {
		if !grouped[i] {
			assigned[i] = cellKey{depth: 0, sig: UngroupedKey}
		}
	}

	// pivot to per-cell weighted choice counts, then to shares
	cells := map[cellKey][]float64{}
	for i := 0; i < n; i++ {
		row, ok := cells[assigned[i]]
		if !ok {
			row = make([]float64, len(choices))
			cells[assigned[i]] = row
		}
		row[choiceIdx[chosen[i]]] += weights[i]
	}
	for key, row := range cells {
		total := floats.Sum(row)
		if total <= 0 {
			return errs.Value("cell %q has no weight", key.sig)
		}
		floats.Scale(1/total, row)
	}

	e.choices = choices
	e.choiceIdx = choiceIdx
	e.cells = cells
	e.usedCorp = useCorp
	e.fitted = true
	return nil
}

// CellShares exposes the fitted cell table keyed by signature with the
// separator rendered as "|"; used by the API surface for inspection.
func (e *Estimator) CellShares() (map[string][]float64, error) {
	if err := e.checkFitted(); err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(e.cells))
	for key, row := range e.cells {
		shares := make([]float64, len(row))
		copy(shares, row)
		out[strings.ReplaceAll(key.sig, sigSep, "|")] = shares
	}
	return out, nil
}
