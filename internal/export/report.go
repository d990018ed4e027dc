package export

import (
	"fmt"
	"sort"
	"strings"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/choicemodel"
)

// PSATable pivots EstimatePSA output into a geography x PSA-key indicator
// matrix: 1 when the geography belongs to that PSA.
func PSATable(psa map[string][]string, geogVar string) Table {
	keys := sortedKeys(psa)
	inPSA := map[string]map[string]bool{}
	var geos []string
	seen := map[string]bool{}
	for _, key := range keys {
		for _, g := range psa[key] {
			if !seen[g] {
				seen[g] = true
				geos = append(geos, g)
			}
			if inPSA[g] == nil {
				inPSA[g] = map[string]bool{}
			}
			inPSA[g][key] = true
		}
	}
	sort.Strings(geos)

	t := Table{Name: "psas", Header: append([]string{geogVar}, keys...)}
	for _, g := range geos {
		row := make([]any, 0, len(keys)+1)
		row = append(row, g)
		for _, key := range keys {
			if inPSA[g][key] {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// SharesReport merges the share tables of one analysis into per-center
// sheets: one weight/share column pair per PSA key, corp subtotal rows when
// a corp grouping exists, and a leading grand-total row.
func SharesReport(tables map[string]choicedata.ShareTable, cfg choicedata.Config) []Table {
	centers := map[string][]string{}
	for key := range tables {
		centers[centerOf(key)] = append(centers[centerOf(key)], key)
	}

	var out []Table
	for _, center := range sortedKeys(centers) {
		keys := centers[center]
		sort.Strings(keys) // lower thresholds first

		hasCorp := cfg.CorpVar != cfg.ChoiceVar
		header := []string{cfg.CorpVar, cfg.ChoiceVar}
		if !hasCorp {
			header = []string{cfg.ChoiceVar}
		}
		for _, key := range keys {
			suffix := suffixOf(key)
			header = append(header, "weight_"+suffix, "share_"+suffix)
		}

		type id struct{ corp, choice string }
		values := map[id]map[string][2]float64{}
		for _, key := range keys {
			for _, r := range tables[key].Rows {
				k := id{r.Corp, r.Choice}
				if values[k] == nil {
					values[k] = map[string][2]float64{}
				}
				values[k][key] = [2]float64{r.Weight, r.Share}
			}
		}
		ids := make([]id, 0, len(values))
		for k := range values {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool {
			if ids[i].corp != ids[j].corp {
				return ids[i].corp < ids[j].corp
			}
			return ids[i].choice < ids[j].choice
		})

		t := Table{Name: center, Header: header}
		grand := make([]float64, 2*len(keys))
		appendRow := func(labels []string, vals []float64) {
			row := make([]any, 0, len(labels)+len(vals))
			for _, l := range labels {
				row = append(row, l)
			}
			for _, v := range vals {
				row = append(row, v)
			}
			t.Rows = append(t.Rows, row)
		}

		var corps []string
		byCorp := map[string][]id{}
		for _, k := range ids {
			if byCorp[k.corp] == nil {
				corps = append(corps, k.corp)
			}
			byCorp[k.corp] = append(byCorp[k.corp], k)
		}
		for _, corp := range corps {
			subtotal := make([]float64, 2*len(keys))
			for _, k := range byCorp[corp] {
				vals := make([]float64, 0, 2*len(keys))
				for c, key := range keys {
					ws := values[k][key]
					vals = append(vals, ws[0], ws[1])
					subtotal[2*c] += ws[0]
					subtotal[2*c+1] += ws[1]
				}
				if hasCorp {
					appendRow([]string{k.corp, k.choice}, vals)
				} else {
					appendRow([]string{k.choice}, vals)
				}
			}
			for i, v := range subtotal {
				grand[i] += v
			}
			if hasCorp {
				appendRow([]string{corp, "Total"}, subtotal)
			}
		}
		labels := []string{"Total", "Total"}
		if !hasCorp {
			labels = []string{"Total"}
		}
		totalRow := make([]any, 0, len(labels)+len(grand))
		for _, l := range labels {
			totalRow = append(totalRow, l)
		}
		for _, v := range grand {
			totalRow = append(totalRow, v)
		}
		t.Rows = append([][]any{totalRow}, t.Rows...)
		out = append(out, t)
	}
	return out
}

// HHIChangeTable formats one transaction's HHI deltas: one column per share
// table, Pre/Post/Change rows.
func HHIChangeTable(name string, deltas map[string]choicedata.HHIDelta) Table {
	keys := sortedKeys(deltas)
	t := Table{Name: name, Header: append([]string{""}, keys...)}
	labels := []string{"Pre-Merger HHI", "Post-Merger HHI", "HHI Change"}
	pick := []func(choicedata.HHIDelta) float64{
		func(d choicedata.HHIDelta) float64 { return d.Pre },
		func(d choicedata.HHIDelta) float64 { return d.Post },
		func(d choicedata.HHIDelta) float64 { return d.Change },
	}
	for i, label := range labels {
		row := []any{label}
		for _, key := range keys {
			row = append(row, pick[i](deltas[key]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// DiversionsReport formats a diversion table: one sheet per target with
// each choice's diversion share and implied diverted volume.
func DiversionsReport(div *choicemodel.DiversionTable, cd *choicedata.ChoiceData) []Table {
	var out []Table
	for _, target := range sortedKeys(div.Shares) {
		diverted := cd.TotalWeight(target)
		t := Table{
			Name:   "Diversions " + target,
			Header: []string{cd.Config().ChoiceVar, "share", "diverted"},
		}
		row := div.Shares[target]
		shareSum, volumeSum := 0.0, 0.0
		for i, choice := range div.Choices {
			if row[i] == 0 {
				continue
			}
			t.Rows = append(t.Rows, []any{choice, row[i], row[i] * diverted})
			shareSum += row[i]
			volumeSum += row[i] * diverted
		}
		t.Rows = append(t.Rows, []any{"Total", shareSum, volumeSum})
		out = append(out, t)
	}
	return out
}

// WTPTable formats one transaction's WTP results as Entity/WTP rows.
func WTPTable(name string, res choicemodel.WTPResult) Table {
	t := Table{Name: name, Header: []string{"Entity", "WTP"}}
	for _, m := range sortedKeys(res.Individual) {
		t.Rows = append(t.Rows, []any{m, res.Individual[m]})
	}
	t.Rows = append(t.Rows,
		[]any{"combined", res.Combined},
		[]any{"wtp_change", res.Change},
	)
	return t
}

// UPPTable formats a UPP result as Entity/UPP rows.
func UPPTable(res choicemodel.UPPResult) Table {
	return Table{
		Name:   "UPP",
		Header: []string{"Entity", "UPP"},
		Rows: [][]any{
			{fmt.Sprintf("upp_%s", res.EntityA), res.UPPA},
			{fmt.Sprintf("upp_%s", res.EntityB), res.UPPB},
			{"avg_upp", res.AvgUPP},
		},
	}
}

// centerOf strips the trailing "_{threshold}" from a PSA key; keys without
// one (like "Base Shares") are their own center.
func centerOf(key string) string {
	if i := strings.LastIndex(key, "_"); i > 0 {
		return key[:i]
	}
	return key
}

func suffixOf(key string) string {
	if i := strings.LastIndex(key, "_"); i > 0 {
		return key[i+1:]
	}
	return key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
