package choicemodel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/errs"
)

func uppData(t *testing.T) (*choicedata.ChoiceData, *Estimator) {
	t.Helper()
	rows := [][]string{
		{"z", "X", "A"}, {"z", "X", "A"},
		{"z", "Y", "B"}, {"z", "Y", "B"},
		{"z", "Z", "C"},
	}
	cd := buildData(t, choicedata.Config{ChoiceVar: "choice", CorpVar: "corp"},
		[]string{"zone", "corp", "choice"}, rows)
	est, err := New(Config{CoefOrder: []string{"zone"}, MinBin: 1})
	require.NoError(t, err)
	require.NoError(t, est.Fit(cd, false))
	return cd, est
}

func uppDiversion() *DiversionTable {
	return &DiversionTable{
		Choices: []string{"A", "B", "C"},
		Shares: map[string][]float64{
			"X": {0, 0.6, 0.4},
			"Y": {0.7, 0, 0.3},
		},
	}
}

func TestUPP(t *testing.T) {
	cd, est := uppData(t)
	res, err := est.UPP(cd,
		Entity{Name: "X", Price: 100, Margin: 0.4},
		Entity{Name: "Y", Price: 80, Margin: 0.5},
		uppDiversion())
	require.NoError(t, err)

	// upp_X = 0.6 * 0.5 * 80 / 100, upp_Y = 0.7 * 0.4 * 100 / 80
	assert.InDelta(t, 0.24, res.UPPA, 1e-12)
	assert.InDelta(t, 0.35, res.UPPB, 1e-12)
	// both corps have 2 observations, so the average is the simple mean
	assert.InDelta(t, 0.295, res.AvgUPP, 1e-12)
	assert.Equal(t, "X", res.EntityA)
	assert.Equal(t, "Y", res.EntityB)
}

func TestUPPValidation(t *testing.T) {
	cd, est := uppData(t)
	okA := Entity{Name: "X", Price: 100, Margin: 0.4}
	okB := Entity{Name: "Y", Price: 80, Margin: 0.5}

	_, err := est.UPP(cd, Entity{Name: "Q", Price: 1, Margin: 0.5}, okB, uppDiversion())
	assert.True(t, errors.Is(err, errs.ErrValue), "unknown corp name")

	_, err = est.UPP(cd, Entity{Name: "X", Price: 0, Margin: 0.5}, okB, uppDiversion())
	assert.True(t, errors.Is(err, errs.ErrValue), "non-positive price")

	_, err = est.UPP(cd, Entity{Name: "X", Price: 100, Margin: 0}, okB, uppDiversion())
	assert.True(t, errors.Is(err, errs.ErrValue), "non-positive margin")

	_, err = est.UPP(cd, okA, okB, nil)
	assert.True(t, errors.Is(err, errs.ErrValue), "missing diversion table")

	noTarget := &DiversionTable{Choices: []string{"A", "B", "C"},
		Shares: map[string][]float64{"X": {0, 0.6, 0.4}}}
	_, err = est.UPP(cd, okA, okB, noTarget)
	assert.True(t, errors.Is(err, errs.ErrValue), "entity missing from diversion targets")

	unfitted, err := New(Config{CoefOrder: []string{"zone"}, MinBin: 1})
	require.NoError(t, err)
	_, err = unfitted.UPP(cd, okA, okB, uppDiversion())
	assert.True(t, errors.Is(err, errs.ErrState))
}

func TestUPPUnknownEntityWithoutCorpGrouping(t *testing.T) {
	rows := [][]string{{"z", "A"}, {"z", "A"}, {"z", "B"}}
	cd := buildData(t, choicedata.Config{ChoiceVar: "choice"},
		[]string{"zone", "choice"}, rows)
	est, err := New(Config{CoefOrder: []string{"zone"}, MinBin: 1})
	require.NoError(t, err)
	require.NoError(t, est.Fit(cd, false))

	div := &DiversionTable{
		Choices: []string{"A", "B"},
		Shares:  map[string][]float64{"Q1": {0, 1}, "Q2": {1, 0}},
	}
	// names absent from the choice column fail validation instead of
	// producing a NaN average from zero observed weight
	_, err = est.UPP(cd,
		Entity{Name: "Q1", Price: 100, Margin: 0.4},
		Entity{Name: "Q2", Price: 80, Margin: 0.5}, div)
	assert.True(t, errors.Is(err, errs.ErrValue))
}
