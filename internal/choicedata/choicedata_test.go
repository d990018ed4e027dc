package choicedata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicemetrics/internal/errs"
	"choicemetrics/internal/frame"
)

func repeat(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func column(vals ...[]string) []string {
	var out []string
	for _, v := range vals {
		out = append(out, v...)
	}
	return out
}

func buildFrame(t *testing.T, cols map[string][]string, order []string) *frame.Frame {
	t.Helper()
	n := len(cols[order[0]])
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(order))
		for j, name := range order {
			require.Len(t, cols[name], n, "column %s", name)
			row[j] = cols[name][i]
		}
		rows[i] = row
	}
	f, err := frame.New(order, rows)
	require.NoError(t, err)
	return f
}

// marketFrame reproduces the three-corporation market used throughout:
// corp x owns choices a and b, y owns c and d, z owns e.
func marketFrame(t *testing.T) *frame.Frame {
	t.Helper()
	return buildFrame(t, map[string][]string{
		"corporation": column(repeat("x", 50), repeat("y", 25), repeat("z", 25)),
		"choice": column(
			repeat("a", 30), repeat("b", 20),
			repeat("c", 20), repeat("d", 5),
			repeat("e", 25),
		),
	}, []string{"corporation", "choice"})
}

func marketData(t *testing.T) *ChoiceData {
	t.Helper()
	cd, err := New(marketFrame(t), Config{ChoiceVar: "choice", CorpVar: "corporation"})
	require.NoError(t, err)
	return cd
}

func TestNewValidation(t *testing.T) {
	f := marketFrame(t)

	_, err := New(f, Config{})
	assert.True(t, errors.Is(err, errs.ErrConfig), "missing choice_var")

	_, err = New(f, Config{ChoiceVar: "nope"})
	assert.True(t, errors.Is(err, errs.ErrSchema), "unknown choice column")

	_, err = New(f, Config{ChoiceVar: "choice", GeogVar: "zip"})
	assert.True(t, errors.Is(err, errs.ErrSchema), "unknown geog column")

	_, err = New(nil, Config{ChoiceVar: "choice"})
	assert.True(t, errors.Is(err, errs.ErrValue), "nil frame")

	missing := buildFrame(t, map[string][]string{
		"choice": {"a", ""},
	}, []string{"choice"})
	_, err = New(missing, Config{ChoiceVar: "choice"})
	assert.True(t, errors.Is(err, errs.ErrValue), "missing choice value")

	badWeight := buildFrame(t, map[string][]string{
		"choice": {"a", "b"},
		"wght":   {"1", "0"},
	}, []string{"choice", "wght"})
	_, err = New(badWeight, Config{ChoiceVar: "choice", WeightVar: "wght"})
	assert.True(t, errors.Is(err, errs.ErrValue), "non-positive weight")
}

func TestCorpVarDefaultsToChoiceVar(t *testing.T) {
	cd, err := New(marketFrame(t), Config{ChoiceVar: "choice"})
	require.NoError(t, err)
	assert.Equal(t, "choice", cd.Config().CorpVar)
	assert.False(t, cd.HasCorp())

	_, err = cd.CorpMap()
	assert.True(t, errors.Is(err, errs.ErrState))
}

func TestCorpMap(t *testing.T) {
	cd := marketData(t)
	cm, err := cd.CorpMap()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"x": {"a", "b"},
		"y": {"c", "d"},
		"z": {"e"},
	}, cm)

	set, err := cd.ChoiceSet("y")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, set)

	_, err = cd.ChoiceSet("w")
	assert.True(t, errors.Is(err, errs.ErrValue))
}

func TestChoiceSetWithoutCorpGrouping(t *testing.T) {
	cd, err := New(marketFrame(t), Config{ChoiceVar: "choice"})
	require.NoError(t, err)

	set, err := cd.ChoiceSet("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, set)

	// a name absent from the choice column is rejected, not passed through
	_, err = cd.ChoiceSet("q")
	assert.True(t, errors.Is(err, errs.ErrValue))
}

func TestEstimatePSA(t *testing.T) {
	f := buildFrame(t, map[string][]string{
		"choice": repeat("a", 100),
		"zip": column(
			repeat("1", 20), repeat("2", 20), repeat("3", 20),
			repeat("4", 20), repeat("5", 20),
		),
	}, []string{"choice", "zip"})
	cd, err := New(f, Config{ChoiceVar: "choice", GeogVar: "zip"})
	require.NoError(t, err)

	psa, err := cd.EstimatePSA([]string{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"a_0.75": {"1", "2", "3", "4"},
		"a_0.9":  {"1", "2", "3", "4", "5"},
	}, psa)
}

func TestEstimatePSAValidation(t *testing.T) {
	cd := marketData(t)
	_, err := cd.EstimatePSA([]string{"x"}, nil)
	assert.True(t, errors.Is(err, errs.ErrSchema), "geog_var not configured")

	f := buildFrame(t, map[string][]string{
		"choice": repeat("a", 4),
		"zip":    {"1", "1", "2", "2"},
	}, []string{"choice", "zip"})
	geo, err := New(f, Config{ChoiceVar: "choice", GeogVar: "zip"})
	require.NoError(t, err)

	_, err = geo.EstimatePSA([]string{"a"}, []float64{1.5})
	assert.True(t, errors.Is(err, errs.ErrValue), "threshold above 1")

	_, err = geo.EstimatePSA([]string{"b"}, nil)
	assert.True(t, errors.Is(err, errs.ErrValue), "unknown center")

	_, err = geo.EstimatePSA(nil, nil)
	assert.True(t, errors.Is(err, errs.ErrValue), "no centers")
}

func TestCalculateBaseShares(t *testing.T) {
	cd := marketData(t)
	out, err := cd.CalculateShares(nil)
	require.NoError(t, err)
	table, ok := out[BaseSharesKey]
	require.True(t, ok)

	want := map[string]float64{"a": 0.30, "b": 0.20, "c": 0.20, "d": 0.05, "e": 0.25}
	require.Len(t, table.Rows, len(want))
	for _, r := range table.Rows {
		assert.InDelta(t, want[r.Choice], r.Share, 1e-12, "share of %s", r.Choice)
	}
	require.NoError(t, CheckShares(table, BaseSharesKey))
}

func TestCalculateWeightedShares(t *testing.T) {
	f := buildFrame(t, map[string][]string{
		"choice": {"a", "b"},
		"wght":   {"3", "1"},
	}, []string{"choice", "wght"})
	cd, err := New(f, Config{ChoiceVar: "choice", WeightVar: "wght"})
	require.NoError(t, err)

	out, err := cd.CalculateShares(nil)
	require.NoError(t, err)
	rows := out[BaseSharesKey].Rows
	require.Len(t, rows, 2)
	assert.InDelta(t, 0.75, rows[0].Share, 1e-12)
	assert.InDelta(t, 0.25, rows[1].Share, 1e-12)
}

func TestCalculatePSAShares(t *testing.T) {
	f := buildFrame(t, map[string][]string{
		"choice": {"a", "a", "b"},
		"zip":    {"1", "1", "2"},
	}, []string{"choice", "zip"})
	cd, err := New(f, Config{ChoiceVar: "choice", GeogVar: "zip"})
	require.NoError(t, err)

	out, err := cd.CalculateShares(map[string][]string{"a_0.75": {"1"}})
	require.NoError(t, err)
	rows := out["a_0.75"].Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Choice)
	assert.InDelta(t, 1.0, rows[0].Share, 1e-12)

	_, err = cd.CalculateShares(map[string][]string{"bad": {"9"}})
	assert.True(t, errors.Is(err, errs.ErrValue), "unknown geography")
}

func TestCheckShares(t *testing.T) {
	bad := ShareTable{Rows: []ShareRow{{Choice: "a", Share: 0.4}, {Choice: "b", Share: 0.4}}}
	err := CheckShares(bad, "t")
	assert.True(t, errors.Is(err, errs.ErrValue), "shares not summing to 1")

	neg := ShareTable{Rows: []ShareRow{{Choice: "a", Share: -0.5}, {Choice: "b", Share: 1.5}}}
	err = CheckShares(neg, "t")
	assert.True(t, errors.Is(err, errs.ErrValue), "negative share")
}

func TestCalculateHHI(t *testing.T) {
	cd := marketData(t)
	shares, err := cd.CalculateShares(nil)
	require.NoError(t, err)
	hhi, err := cd.CalculateHHI(shares)
	require.NoError(t, err)
	assert.InDelta(t, 3750.0, hhi[BaseSharesKey], 1e-9)
}

func TestHHIChange(t *testing.T) {
	cd := marketData(t)
	shares, err := cd.CalculateShares(nil)
	require.NoError(t, err)

	changes, err := cd.HHIChange(map[string][]string{"deal": {"y", "z"}}, shares)
	require.NoError(t, err)
	delta := changes["deal"][BaseSharesKey]
	assert.InDelta(t, 3750.0, delta.Pre, 1e-9)
	assert.InDelta(t, 5000.0, delta.Post, 1e-9)
	assert.InDelta(t, 1250.0, delta.Change, 1e-9)
}

func TestHHIChangeValidation(t *testing.T) {
	cd := marketData(t)
	shares, err := cd.CalculateShares(nil)
	require.NoError(t, err)

	_, err = cd.HHIChange(map[string][]string{"deal": {"y"}}, shares)
	assert.True(t, errors.Is(err, errs.ErrValue), "single-party transaction")

	_, err = cd.HHIChange(map[string][]string{"deal": {"y", "w"}}, shares)
	assert.True(t, errors.Is(err, errs.ErrValue), "unknown party")
}

func TestRestrict(t *testing.T) {
	cd := marketData(t)
	corps, err := cd.Frame().Column("corporation")
	require.NoError(t, err)
	mask := make([]bool, len(corps))
	for i, c := range corps {
		mask[i] = c != "z"
	}
	sub, err := cd.Restrict(mask)
	require.NoError(t, err)
	assert.Equal(t, 75, sub.Len())
	assert.Equal(t, 100, cd.Len(), "original data unchanged")

	_, err = cd.Restrict(make([]bool, cd.Len()))
	assert.True(t, errors.Is(err, errs.ErrValue), "empty restriction")
}

func TestSummarize(t *testing.T) {
	cd := marketData(t)
	s := cd.Summarize()
	assert.Equal(t, 100, s.Rows)
	assert.Equal(t, 5, s.Choices)
	assert.Equal(t, 3, s.Corps)
	assert.InDelta(t, 100.0, s.TotalWeight, 1e-12)
}
