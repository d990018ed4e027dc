// Package screening turns concentration and pricing-pressure results into a
// first-pass merger screening card following the 2010 Horizontal Merger
// Guidelines HHI bands.
package screening

import (
	"fmt"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/choicemodel"
)

type Card struct {
	Finding    string `json:"finding"`
	Assessment string `json:"assessment"`
	FollowUp   string `json:"follow_up"`
}

const (
	moderateHHI   = 1500
	highHHI       = 2500
	notableDelta  = 100
	presumedDelta = 200
)

// Assess classifies one market's HHI delta, optionally noting upward
// pricing pressure.
func Assess(delta choicedata.HHIDelta, upp *choicemodel.UPPResult) Card {
	band := "unconcentrated"
	switch {
	case delta.Post > highHHI:
		band = "highly concentrated"
	case delta.Post > moderateHHI:
		band = "moderately concentrated"
	}
	finding := fmt.Sprintf("Post-merger HHI %.0f (%s), change %.0f", delta.Post, band, delta.Change)

	var assessment, followUp string
	switch {
	case delta.Post > highHHI && delta.Change > presumedDelta:
		assessment = "Presumed likely to enhance market power"
		followUp = "Full competitive effects analysis; expect agency scrutiny"
	case delta.Post > highHHI && delta.Change > notableDelta:
		assessment = "Raises significant competitive concerns"
		followUp = "Prepare diversion and UPP evidence for review"
	case delta.Post > moderateHHI && delta.Change > notableDelta:
		assessment = "Potentially raises significant competitive concerns"
		followUp = "Examine closeness of competition between the parties"
	default:
		assessment = "Unlikely to have adverse competitive effects"
		followUp = "Monitor; no further concentration analysis indicated"
	}

	if upp != nil && upp.AvgUPP > 0 {
		finding += fmt.Sprintf("; average UPP %.3f", upp.AvgUPP)
	}
	return Card{Finding: finding, Assessment: assessment, FollowUp: followUp}
}
