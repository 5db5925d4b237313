package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/cabinetry/internal/pricing"
	"github.com/Simplici0/cabinetry/internal/quote"
	"github.com/Simplici0/cabinetry/internal/store"
)

const maxBodyBytes = 1 << 20

type recordResponse struct {
	Version store.Snapshot `json:"version"`
	Result  pricing.Result `json:"result"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *server) handleGetPricing(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.backend.Load(r.Context())
	if err != nil {
		s.writeStoreError(w, "load pricing configuration", err)
		return
	}
	s.writeJSON(w, cfg, http.StatusOK)
}

func (s *server) handleUpdatePricing(w http.ResponseWriter, r *http.Request) {
	var partial pricing.RateConfiguration
	if err := decodeBody(w, r, &partial); err != nil {
		s.writeError(w, "invalid_body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := partial.Validate(); err != nil {
		s.writeError(w, "invalid_rates", err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := s.backend.Save(r.Context(), partial)
	if err != nil {
		s.writeStoreError(w, "save pricing configuration", err)
		return
	}
	s.writeJSON(w, cfg, http.StatusOK)
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req pricing.EstimateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, "invalid_body", err.Error(), http.StatusBadRequest)
		return
	}

	if req.Rates.IsZero() {
		active, err := s.backend.Load(r.Context())
		if err != nil {
			s.writeStoreError(w, "load pricing configuration", err)
			return
		}
		req.Rates = active
	} else if missing := req.Rates.MissingKeys(); len(missing) > 0 {
		s.log.Warn("estimate rates incomplete, using defaults", zap.Strings("missing", missing))
	}

	s.writeJSON(w, pricing.Estimate(req), http.StatusOK)
}

func (s *server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.backend.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "list pricing versions", err)
		return
	}
	s.writeJSON(w, versions, http.StatusOK)
}

// handleRecordVersion prices the posted calculator state against the active
// configuration and stores both as a new version.
func (s *server) handleRecordVersion(w http.ResponseWriter, r *http.Request) {
	var req pricing.EstimateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, "invalid_body", err.Error(), http.StatusBadRequest)
		return
	}

	active, err := s.backend.Load(r.Context())
	if err != nil {
		s.writeStoreError(w, "load pricing configuration", err)
		return
	}
	req.Rates = active
	res := pricing.Estimate(req)

	snap, err := s.backend.Record(r.Context(), active, pricing.NewPrefill(req, res))
	if err != nil {
		s.writeStoreError(w, "record pricing version", err)
		return
	}
	s.writeJSON(w, recordResponse{Version: snap, Result: res}, http.StatusCreated)
}

func (s *server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadVersion(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, snap, http.StatusOK)
}

func (s *server) handleVersionEstimate(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadVersion(w, r)
	if !ok {
		return
	}
	req := snap.Data.Prefill.Request(snap.Data.RateConfiguration)
	s.writeJSON(w, pricing.Estimate(req), http.StatusOK)
}

func (s *server) handleVersionText(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadVersion(w, r)
	if !ok {
		return
	}

	req := snap.Data.Prefill.Request(snap.Data.RateConfiguration)
	q := quote.Quote{
		Title:    fmt.Sprintf("Cabinetry quote #%d", snap.TS),
		Currency: s.currency,
		IssuedAt: snap.Time(),
		Request:  req,
		Result:   pricing.Estimate(req),
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := quote.Render(w, q); err != nil {
		s.log.Error("render quote text", zap.Int64("ts", snap.TS), zap.Error(err))
	}
}

func (s *server) handleRestore(w http.ResponseWriter, r *http.Request) {
	ts, err := parseTS(r.URL.Query().Get("ts"))
	if err != nil {
		s.writeError(w, "invalid_ts", err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := s.backend.Restore(r.Context(), ts)
	if err != nil {
		s.writeStoreError(w, "restore pricing version", err)
		return
	}
	s.writeJSON(w, cfg, http.StatusOK)
}

func (s *server) loadVersion(w http.ResponseWriter, r *http.Request) (store.Snapshot, bool) {
	ts, err := parseTS(chi.URLParam(r, "ts"))
	if err != nil {
		s.writeError(w, "invalid_ts", err.Error(), http.StatusBadRequest)
		return store.Snapshot{}, false
	}

	snap, err := s.backend.Get(r.Context(), ts)
	if err != nil {
		s.writeStoreError(w, "get pricing version", err)
		return store.Snapshot{}, false
	}
	return snap, true
}

func parseTS(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("ts is required")
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return 0, fmt.Errorf("ts must be a positive integer, got %q", raw)
	}
	return ts, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (s *server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, "not_found", err.Error(), http.StatusNotFound)
	case store.IsPersistence(err):
		s.log.Error(op, zap.Error(err))
		s.writeError(w, "persistence_failure", op+" failed", http.StatusInternalServerError)
	default:
		s.log.Error(op, zap.Error(err))
		s.writeError(w, "internal", op+" failed", http.StatusInternalServerError)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}

func (s *server) writeError(w http.ResponseWriter, code, message string, status int) {
	s.writeJSON(w, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}, status)
}
