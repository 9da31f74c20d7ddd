package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/report"
	"github.com/rickgao/prosper-api/internal/version"
)

func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	regionID, typeID, err := parseIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.UserAgent() == "" {
		s.writeError(w, r, badRequest("User-Agent header required"))
		return
	}

	mode := s.opts.OHLCSource
	if v := r.URL.Query().Get("source"); v != "" {
		if mode, err = history.ParseMode(v); err != nil {
			s.writeError(w, r, badRequest("%v", err))
			return
		}
	}

	ctx := r.Context()
	if err := s.validateIDs(ctx, regionID, typeID); err != nil {
		s.writeError(w, r, err)
		return
	}

	series, err := s.deps.History.History(ctx, regionID, typeID, mode, history.Range{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := report.ToOHLC(series)
	s.logger.Debug("ohlc report built",
		"request_id", RequestID(ctx),
		"region_id", regionID,
		"type_id", typeID,
		"source", mode.String(),
		"rows", len(rows),
	)

	var buf bytes.Buffer
	if err := report.WriteOHLC(&buf, format, rows, series.DateLayout); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBody(w, format, buf.Bytes())
}

func (s *Server) handleProphet(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	regionID, typeID, err := parseIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rangeDays := s.opts.DefaultRange
	if v := r.URL.Query().Get("range"); v != "" {
		if rangeDays, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, badRequest("range must be an integer, got %q", v))
			return
		}
	}

	ctx := r.Context()
	if _, err := s.deps.Keys.Check(ctx, apiKey(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.validateIDs(ctx, regionID, typeID); err != nil {
		s.writeError(w, r, err)
		return
	}

	rows, err := s.deps.Forecasts.Forecast(ctx, regionID, typeID, rangeDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteForecast(&buf, format, rows, ""); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBody(w, format, buf.Bytes())
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	Components map[string]any `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := healthResponse{
		Status:     "healthy",
		Version:    version.Version,
		Components: make(map[string]any),
	}

	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components[name] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
			continue
		}
		health.Components[name] = "connected"
	}

	if s.deps.Splits != nil {
		health.Components["splits"] = map[string]any{
			"records": s.deps.Splits.Current().Len(),
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleReloadSplits(w http.ResponseWriter, r *http.Request) {
	reg, err := s.deps.Splits.Reload()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"records": reg.Len()})
}

func (s *Server) validateIDs(ctx context.Context, regionID, typeID int) error {
	if s.deps.Validator == nil {
		return nil
	}
	if err := s.deps.Validator.ValidateRegion(ctx, regionID); err != nil {
		s.recordUpstream("esi", err)
		return err
	}
	if err := s.deps.Validator.ValidateType(ctx, typeID); err != nil {
		s.recordUpstream("esi", err)
		return err
	}
	return nil
}

// recordUpstream counts id validation failures. History fetches are counted
// by the resolver.
func (s *Server) recordUpstream(source string, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != http.StatusNotFound {
		metrics.RecordUpstreamError(source)
	}
}

func parseIDs(r *http.Request) (int, int, error) {
	regionID, err := positiveParam(r, "regionID")
	if err != nil {
		return 0, 0, err
	}
	typeID, err := positiveParam(r, "typeID")
	if err != nil {
		return 0, 0, err
	}
	return regionID, typeID, nil
}

func positiveParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, badRequest("%s required", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, badRequest("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}

// apiKey reads the key from the api query parameter or the X-API-Key header.
func apiKey(r *http.Request) string {
	if k := r.URL.Query().Get("api"); k != "" {
		return k
	}
	return r.Header.Get("X-API-Key")
}

func writeBody(w http.ResponseWriter, format report.Format, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
