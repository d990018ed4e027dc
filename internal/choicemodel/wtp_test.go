package choicemodel

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
)

func wtpData(t *testing.T, weights []string) (*choicedata.ChoiceData, *Estimator) {
	t.Helper()
	header := []string{"zone", "choice"}
	rows := [][]string{{"z", "X"}}
	cfg := choicedata.Config{ChoiceVar: "choice"}
	if weights != nil {
		header = append(header, "wght")
		rows[0] = append(rows[0], weights[0])
		cfg.WeightVar = "wght"
	}
	cd := buildData(t, cfg, header, rows)
	est, err := New(Config{CoefOrder: []string{"zone"}, MinBin: 1})
	require.NoError(t, err)
	require.NoError(t, est.Fit(cd, false))
	return cd, est
}

func TestWTPChangeClosedForm(t *testing.T) {
	cd, est := wtpData(t, nil)
	pred := &Prediction{
		Choices: []string{"X", "Y", "Z"},
		Probs:   [][]float64{{0.5, 0.3, 0.2}},
	}
	out, err := est.WTPChange(cd, pred, map[string][]string{"deal": {"X", "Y"}})
	require.NoError(t, err)
	res := out["deal"]

	wtpX := -math.Log(1 - 0.5)
	wtpY := -math.Log(1 - 0.3)
	combined := -math.Log(1 - 0.8)
	assert.InDelta(t, wtpX, res.Individual["X"], 1e-12)
	assert.InDelta(t, wtpY, res.Individual["Y"], 1e-12)
	assert.InDelta(t, combined, res.Combined, 1e-12)
	assert.InDelta(t, (combined-wtpX-wtpY)/(wtpX+wtpY), res.Change, 1e-12)
	assert.False(t, res.Degenerate)
}

func TestWTPChangeWeighted(t *testing.T) {
	cd, est := wtpData(t, []string{"2"})
	pred := &Prediction{
		Choices: []string{"X", "Y", "Z"},
		Probs:   [][]float64{{0.5, 0.3, 0.2}},
	}
	out, err := est.WTPChange(cd, pred, map[string][]string{"deal": {"X", "Y"}})
	require.NoError(t, err)
	res := out["deal"]

	assert.InDelta(t, 2*-math.Log(0.5), res.Individual["X"], 1e-12)
	assert.InDelta(t, 2*-math.Log(0.2), res.Combined, 1e-12)
	// the relative change is invariant to a uniform weight
	combined := -math.Log(0.2)
	sum := -math.Log(0.5) - math.Log(0.7)
	assert.InDelta(t, (combined-sum)/sum, res.Change, 1e-12)
}

func TestWTPChangeDegenerate(t *testing.T) {
	cd, est := wtpData(t, nil)
	pred := &Prediction{
		Choices: []string{"X", "Y"},
		Probs:   [][]float64{{1, 0}},
	}
	out, err := est.WTPChange(cd, pred, map[string][]string{"deal": {"X", "Y"}})
	require.NoError(t, err)
	res := out["deal"]
	assert.True(t, res.Degenerate)
	assert.True(t, math.IsInf(res.Individual["X"], 1))
	assert.True(t, math.IsInf(res.Combined, 1))
}

func TestWTPChangeValidation(t *testing.T) {
	cd, est := wtpData(t, nil)
	pred := &Prediction{
		Choices: []string{"X", "Y"},
		Probs:   [][]float64{{0.5, 0.5}},
	}

	_, err := est.WTPChange(cd, pred, map[string][]string{"deal": {"X"}})
	assert.True(t, errors.Is(err, errs.ErrValue), "needs at least 2 choices")

	_, err = est.WTPChange(cd, pred, map[string][]string{"deal": {"X", "Q"}})
	assert.True(t, errors.Is(err, errs.ErrSchema), "unknown choice")

	short := &Prediction{Choices: pred.Choices}
	_, err = est.WTPChange(cd, short, map[string][]string{"deal": {"X", "Y"}})
	assert.True(t, errors.Is(err, errs.ErrValue), "row count mismatch")

	unfitted, err := New(Config{CoefOrder: []string{"zone"}, MinBin: 1})
	require.NoError(t, err)
	_, err = unfitted.WTPChange(cd, pred, map[string][]string{"deal": {"X", "Y"}})
	assert.True(t, errors.Is(err, errs.ErrState))
}
