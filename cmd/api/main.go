package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"choicemetrics/internal/choicedata"
	"choicemetrics/internal/choicemodel"
	"choicemetrics/internal/dataset"
	"choicemetrics/internal/errs"
	"choicemetrics/internal/export"
	"choicemetrics/internal/logger"
	"choicemetrics/internal/screening"
	"choicemetrics/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.Info("starting service")

	// load the choice dataset into memory
	dataPath := envOr("DATASET_PATH", "choices.csv")
	if url := os.Getenv("DATASET_URL"); url != "" {
		log.WithField("dataset_url", url).Info("fetching remote dataset")
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := dataset.Fetch(ctx, url, dataPath); err != nil {
			cancel()
			log.WithError(err).Fatal("failed to fetch dataset")
		}
		cancel()
	}
	log.WithField("dataset_path", dataPath).Info("loading dataset")
	f, err := dataset.Load(dataPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load dataset")
	}
	cd, err := choicedata.New(f, choicedata.Config{
		ChoiceVar: envOr("CHOICE_VAR", "choice"),
		CorpVar:   os.Getenv("CORP_VAR"),
		GeogVar:   os.Getenv("GEOG_VAR"),
		WeightVar: os.Getenv("WGHT_VAR"),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build choice data")
	}
	summary := cd.Summarize()
	log.WithFields(logrus.Fields{
		"rows":        summary.Rows,
		"choices":     summary.Choices,
		"corps":       summary.Corps,
		"geographies": summary.Geographies,
	}).Info("dataset loaded")

	// fit the discrete choice model once at startup when configured; the
	// fitted state is read-only afterwards so handlers share it freely
	var est *choicemodel.Estimator
	var pred *choicemodel.Prediction
	if coefs := os.Getenv("COEF_ORDER"); coefs != "" {
		minBin, err := strconv.ParseFloat(envOr("MIN_BIN", "25"), 64)
		if err != nil {
			log.WithError(err).Fatal("invalid MIN_BIN")
		}
		est, err = choicemodel.New(choicemodel.Config{
			CoefOrder: strings.Split(coefs, ","),
			MinBin:    minBin,
		})
		if err != nil {
			log.WithError(err).Fatal("invalid model configuration")
		}
		if err := est.Fit(cd, os.Getenv("USE_CORP") == "true"); err != nil {
			log.WithError(err).Fatal("model fit failed")
		}
		pred, err = est.Predict(cd)
		if err != nil {
			log.WithError(err).Fatal("model predict failed")
		}
		log.WithFields(logrus.Fields{
			"run_id":     uuid.New().String(),
			"coef_order": coefs,
			"min_bin":    minBin,
		}).Info("discrete choice model fitted")
	}

	validate := validator.New()
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).WithField("handler", "summary").Info("summary requested")
		writeJSON(w, http.StatusOK, summary)
	})

	mux.HandleFunc("/psa", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "psa")
		req, ok := decode[types.PSARequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		psas, err := cd.EstimatePSA(req.Centers, req.Thresholds)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.PSAResponse{PSAs: psas})
	})

	mux.HandleFunc("/shares", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "shares")
		req, ok := decode[types.SharesRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		shares, err := sharesFor(cd, req.Centers, req.Thresholds)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SharesResponse{Shares: shares})
	})

	mux.HandleFunc("/hhi", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "hhi")
		req, ok := decode[types.SharesRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		shares, err := sharesFor(cd, req.Centers, req.Thresholds)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		hhi, err := cd.CalculateHHI(shares)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SharesResponse{Shares: shares, HHI: hhi})
	})

	mux.HandleFunc("/hhi-change", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "hhi-change")
		req, ok := decode[types.HHIChangeRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		shares, err := sharesFor(cd, req.Centers, req.Thresholds)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		changes, err := cd.HHIChange(req.Transactions, shares)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.HHIChangeResponse{Changes: changes})
	})

	mux.HandleFunc("/cells", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "cells")
		if est == nil {
			writeError(w, reqLog, errs.State("no model configured; set COEF_ORDER"))
			return
		}
		cells, err := est.CellShares()
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"choices": est.Choices(),
			"cells":   cells,
		})
	})

	mux.HandleFunc("/diversion", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "diversion")
		if est == nil {
			writeError(w, reqLog, errs.State("no model configured; set COEF_ORDER"))
			return
		}
		req, ok := decode[types.DiversionRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		div, err := est.Diversion(cd, pred, req.Targets, req.AltVar)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.DiversionResponse{Diversions: div})
	})

	mux.HandleFunc("/wtp", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "wtp")
		if est == nil {
			writeError(w, reqLog, errs.State("no model configured; set COEF_ORDER"))
			return
		}
		req, ok := decode[types.WTPRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		res, err := est.WTPChange(cd, pred, req.Transactions)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.WTPResponse{WTP: res})
	})

	mux.HandleFunc("/upp", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "upp")
		if est == nil {
			writeError(w, reqLog, errs.State("no model configured; set COEF_ORDER"))
			return
		}
		req, ok := decode[types.UPPRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		res, err := uppFor(cd, est, pred, req.EntityA, req.EntityB)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, types.UPPResponse{UPP: res})
	})

	mux.HandleFunc("/screen", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "screen")
		req, ok := decode[types.ScreenRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		shares, err := cd.CalculateShares(nil)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		changes, err := cd.HHIChange(map[string][]string{"screen": req.Transaction}, shares)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		delta := changes["screen"][choicedata.BaseSharesKey]
		var upp *choicemodel.UPPResult
		if req.EntityA != nil && req.EntityB != nil {
			if est == nil {
				writeError(w, reqLog, errs.State("no model configured; set COEF_ORDER"))
				return
			}
			res, err := uppFor(cd, est, pred, *req.EntityA, *req.EntityB)
			if err != nil {
				writeError(w, reqLog, err)
				return
			}
			upp = &res
		}
		writeJSON(w, http.StatusOK, types.ScreenResponse{
			HHI:  delta,
			UPP:  upp,
			Card: screening.Assess(delta, upp),
		})
	})

	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "export")
		req, ok := decode[types.ExportRequest](w, r, validate, reqLog)
		if !ok {
			return
		}
		sheets, err := runExport(cd, est, pred, req)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		reqLog.WithField("path", req.Path).WithField("sheets", len(sheets)).Info("report exported")
		writeJSON(w, http.StatusOK, types.ExportResponse{Path: req.Path, Sheets: sheets})
	})

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

// sharesFor computes base shares when no centers are given, PSA-restricted
// shares otherwise.
func sharesFor(cd *choicedata.ChoiceData, centers []string, thresholds []float64) (map[string]choicedata.ShareTable, error) {
	if len(centers) == 0 {
		return cd.CalculateShares(nil)
	}
	psa, err := cd.EstimatePSA(centers, thresholds)
	if err != nil {
		return nil, err
	}
	return cd.CalculateShares(psa)
}

func uppFor(cd *choicedata.ChoiceData, est *choicemodel.Estimator, pred *choicemodel.Prediction, a, b types.EntityInput) (choicemodel.UPPResult, error) {
	div, err := est.Diversion(cd, pred, []string{a.Name, b.Name}, "")
	if err != nil {
		return choicemodel.UPPResult{}, err
	}
	return est.UPP(cd, choicemodel.Entity(a), choicemodel.Entity(b), div)
}

// runExport assembles every requested report table and writes the file.
func runExport(cd *choicedata.ChoiceData, est *choicemodel.Estimator, pred *choicemodel.Prediction, req types.ExportRequest) ([]string, error) {
	var tables []export.Table

	var psa map[string][]string
	if len(req.Centers) > 0 {
		p, err := cd.EstimatePSA(req.Centers, req.Thresholds)
		if err != nil {
			return nil, err
		}
		psa = p
		tables = append(tables, export.PSATable(psa, cd.Config().GeogVar))
	}
	shares, err := cd.CalculateShares(psa)
	if err != nil {
		return nil, err
	}
	tables = append(tables, export.SharesReport(shares, cd.Config())...)

	if len(req.Transactions) > 0 {
		changes, err := cd.HHIChange(req.Transactions, shares)
		if err != nil {
			return nil, err
		}
		for name, perTable := range changes {
			tables = append(tables, export.HHIChangeTable("HHI Change "+name, perTable))
		}
	}

	if est != nil && len(req.Targets) > 0 {
		div, err := est.Diversion(cd, pred, req.Targets, "")
		if err != nil {
			return nil, err
		}
		tables = append(tables, export.DiversionsReport(div, cd)...)
	}
	if est != nil && len(req.Transactions) > 0 {
		wtp, err := est.WTPChange(cd, pred, req.Transactions)
		if err != nil {
			return nil, err
		}
		for name, res := range wtp {
			tables = append(tables, export.WTPTable("WTP "+name, res))
		}
	}
	if est != nil && req.EntityA != nil && req.EntityB != nil {
		res, err := uppFor(cd, est, pred, *req.EntityA, *req.EntityB)
		if err != nil {
			return nil, err
		}
		tables = append(tables, export.UPPTable(res))
	}

	exp, err := export.New(req.Path, req.Format)
	if err != nil {
		return nil, err
	}
	if err := exp.Export(tables...); err != nil {
		return nil, err
	}
	sheets := make([]string, len(tables))
	for i, t := range tables {
		sheets[i] = t.Name
	}
	return sheets, nil
}

// decode parses and validates a JSON POST body.
func decode[T any](w http.ResponseWriter, r *http.Request, validate *validator.Validate, reqLog *logrus.Entry) (T, bool) {
	var req T
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reqLog.WithError(err).Warn("bad request body")
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		reqLog.WithError(err).Warn("request validation failed")
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, reqLog *logrus.Entry, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValue), errors.Is(err, errs.ErrSchema):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrState), errors.Is(err, errs.ErrConfig):
		status = http.StatusUnprocessableEntity
	}
	reqLog.WithError(err).Warn("request failed")
	writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
