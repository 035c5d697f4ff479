package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/metrics"
	"github.com/trogers1052/fund-metrics/internal/models"
	"github.com/trogers1052/fund-metrics/internal/pipeline"
	"github.com/trogers1052/fund-metrics/internal/returns"
	"github.com/trogers1052/fund-metrics/internal/store"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      store.FundStore
	aggregator *metrics.Aggregator
	log        zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(st store.FundStore, agg *metrics.Aggregator, log zerolog.Logger) *Handler {
	return &Handler{
		store:      st,
		aggregator: agg,
		log:        log,
	}
}

// FundInfo describes a stored fund
type FundInfo struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Records   int       `json:"records"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
}

// GetFunds handles GET /funds
func (h *Handler) GetFunds(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.store.LoadAll(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}

	funds := make([]FundInfo, 0, len(grouped))
	for _, code := range store.SortedCodes(grouped) {
		recs := grouped[code]
		funds = append(funds, FundInfo{
			Code:      code,
			Name:      recs[0].Name,
			Records:   len(recs),
			FirstDate: recs[0].TradingDay,
			LastDate:  recs[len(recs)-1].TradingDay,
		})
	}

	respondJSON(w, http.StatusOK, funds)
}

// GetNAV handles GET /funds/{code}/nav
func (h *Handler) GetNAV(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.fundRecords(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

// GetReturns handles GET /funds/{code}/returns
func (h *Handler) GetReturns(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.fundRecords(w, r)
	if !ok {
		return
	}

	rets, err := returns.Compute(recs)
	if err != nil {
		h.integrityError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rets)
}

// GetSummaries handles GET /funds/{code}/summaries?granularity=annual|monthly
func (h *Handler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	g := models.GranularityAnnual
	if v := r.URL.Query().Get("granularity"); v != "" {
		parsed, err := models.ParseGranularity(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g = parsed
	}

	recs, ok := h.fundRecords(w, r)
	if !ok {
		return
	}

	summaries, err := pipeline.Analyze(h.aggregator, recs, g)
	if err != nil {
		h.integrityError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// fundRecords writes a 404 and returns false when the fund is unknown
func (h *Handler) fundRecords(w http.ResponseWriter, r *http.Request) ([]models.NAVRecord, bool) {
	code := mux.Vars(r)["code"]

	recs, err := h.store.LoadFund(r.Context(), code)
	if err != nil {
		h.serverError(w, err)
		return nil, false
	}
	if len(recs) == 0 {
		http.Error(w, "fund not found: "+code, http.StatusNotFound)
		return nil, false
	}
	return recs, true
}

func (h *Handler) integrityError(w http.ResponseWriter, err error) {
	var die *returns.DataIntegrityError
	if errors.As(err, &die) {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.serverError(w, err)
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
