// Package types holds the API request and response models. Request structs
// carry validator tags; handlers validate before touching the analytics.
package types

import (
	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/choicemodel"
	"choicemetrics/internal/screening"
)

type PSARequest struct {
	Centers    []string  `json:"centers" validate:"required,min=1,dive,required"`
	Thresholds []float64 `json:"thresholds" validate:"omitempty,dive,gt=0,lte=1"`
}

type PSAResponse struct {
	PSAs map[string][]string `json:"psas"`
}

// SharesRequest computes base shares when Centers is empty, PSA-restricted
// shares otherwise.
type SharesRequest struct {
	Centers    []string  `json:"centers"`
	Thresholds []float64 `json:"thresholds" validate:"omitempty,dive,gt=0,lte=1"`
}

type SharesResponse struct {
	Shares map[string]choicedata.ShareTable `json:"shares"`
	HHI    map[string]float64               `json:"hhi,omitempty"`
}

type HHIChangeRequest struct {
	Transactions map[string][]string `json:"transactions" validate:"required,min=1,dive,min=2"`
	Centers      []string            `json:"centers"`
	Thresholds   []float64           `json:"thresholds" validate:"omitempty,dive,gt=0,lte=1"`
}

type HHIChangeResponse struct {
	Changes map[string]map[string]choicedata.HHIDelta `json:"changes"`
}

type DiversionRequest struct {
	Targets []string `json:"targets" validate:"required,min=1,dive,required"`
	AltVar  string   `json:"alt_var"`
}

type DiversionResponse struct {
	Diversions *choicemodel.DiversionTable `json:"diversions"`
}

type WTPRequest struct {
	Transactions map[string][]string `json:"transactions" validate:"required,min=1,dive,min=2"`
}

type WTPResponse struct {
	WTP map[string]choicemodel.WTPResult `json:"wtp"`
}

type EntityInput struct {
	Name   string  `json:"name" validate:"required"`
	Price  float64 `json:"price" validate:"gt=0"`
	Margin float64 `json:"margin" validate:"gt=0"`
}

type UPPRequest struct {
	EntityA EntityInput `json:"entity_a" validate:"required"`
	EntityB EntityInput `json:"entity_b" validate:"required"`
}

type UPPResponse struct {
	UPP choicemodel.UPPResult `json:"upp"`
}

// ScreenRequest runs HHI change on base shares for one transaction,
// optionally adding a UPP calculation for two of its parties.
type ScreenRequest struct {
	Transaction []string     `json:"transaction" validate:"required,min=2,dive,required"`
	EntityA     *EntityInput `json:"entity_a" validate:"omitempty"`
	EntityB     *EntityInput `json:"entity_b" validate:"omitempty,required_with=EntityA"`
}

type ScreenResponse struct {
	HHI  choicedata.HHIDelta    `json:"hhi"`
	UPP  *choicemodel.UPPResult `json:"upp,omitempty"`
	Card screening.Card         `json:"card"`
}

// ExportRequest runs the full analysis and writes the report workbook.
type ExportRequest struct {
	Path         string              `json:"path" validate:"required"`
	Format       string              `json:"format" validate:"required,oneof=csv excel"`
	Centers      []string            `json:"centers"`
	Thresholds   []float64           `json:"thresholds" validate:"omitempty,dive,gt=0,lte=1"`
	Transactions map[string][]string `json:"transactions" validate:"omitempty,dive,min=2"`
	Targets      []string            `json:"targets"`
	EntityA      *EntityInput        `json:"entity_a" validate:"omitempty"`
	EntityB      *EntityInput        `json:"entity_b" validate:"omitempty,required_with=EntityA"`
}

type ExportResponse struct {
	Path   string   `json:"path"`
	Sheets []string `json:"sheets"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
