package choicedata

import (
	"fmt"
	"sort"
	"strconv"

	"choicemetrics/internal/errs"
)

// EstimatePSA identifies each center's Primary Service Area: the smallest
// set of geographies that accounts for at least the threshold share of the
// center's volume. Result keys are "{center}_{threshold}" and values are the
// geographies in the PSA, sorted.
func (cd *ChoiceData) EstimatePSA(centers []string, thresholds []float64) (map[string][]string, error) {
	if cd.cfg.GeogVar == "" {
		return nil, errs.Schema("geog_var is not defined")
	}
	if len(centers) == 0 {
		return nil, errs.Value("centers must have at least one element")
	}
	if len(thresholds) == 0 {
		thresholds = []float64{0.75, 0.9}
	}
	for _, t := range thresholds {
		if t <= 0 || t > 1 {
			return nil, errs.Value("threshold %v is not in (0, 1]", t)
		}
	}

	corps, _ := cd.f.Column(cd.cfg.CorpVar)
	geogs, _ := cd.f.Column(cd.cfg.GeogVar)
	ws := cd.Weights()

	// weight by corp and geography
	byCorp := map[string]map[string]float64{}
	totals := map[string]float64{}
	for i, corp := range corps {
		if byCorp[corp] == nil {
			byCorp[corp] = map[string]float64{}
		}
		byCorp[corp][geogs[i]] += ws[i]
		totals[corp] += ws[i]
	}
	for _, center := range centers {
		if _, ok := byCorp[center]; !ok {
			return nil, errs.Value("%q is not in column %q", center, cd.cfg.CorpVar)
		}
	}

	out := map[string][]string{}
	for _, center := range centers {
		type geoWeight struct {
			geo string
			w   float64
		}
		ranked := make([]geoWeight, 0, len(byCorp[center]))
		for g, w := range byCorp[center] {
			ranked = append(ranked, geoWeight{g, w})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].w != ranked[j].w {
				return ranked[i].w > ranked[j].w
			}
			return lessGeo(ranked[i].geo, ranked[j].geo)
		})
		for _, t := range thresholds {
			var psa []string
			cum := 0.0
			for _, gw := range ranked {
				// a geography joins the PSA while the share accumulated
				// before it is still below the threshold
				if cum/totals[center] >= t {
					break
				}
				psa = append(psa, gw.geo)
				cum += gw.w
			}
			sort.Slice(psa, func(i, j int) bool { return lessGeo(psa[i], psa[j]) })
			out[fmt.Sprintf("%s_%s", center, formatThreshold(t))] = psa
		}
	}
	return out, nil
}

// lessGeo orders geographies numerically when both parse as numbers (zip
// codes usually do), lexically otherwise.
func lessGeo(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}
