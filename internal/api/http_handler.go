// Package api exposes the filtering and analytics core over thin HTTP
// handlers. Handlers parse parameters, call the services, and map domain
// errors to status codes; no query logic lives here.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/peachstate/voterlens/internal/analytics"
	"github.com/peachstate/voterlens/internal/domain"
	"github.com/peachstate/voterlens/internal/export"
	"github.com/peachstate/voterlens/internal/filter"
	"github.com/peachstate/voterlens/internal/middleware"
	"github.com/peachstate/voterlens/internal/repository"
)

type Handler struct {
	service  *analytics.Service
	exporter *export.Service
}

// NewRouter wires the handlers, logging, and the per-request census loader.
func NewRouter(service *analytics.Service, exporter *export.Service, censusRepo repository.CensusRepository) http.Handler {
	h := &Handler{service: service, exporter: exporter}

	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CensusLoaderMiddleware(censusRepo))

	r.Route("/api", func(r chi.Router) {
		r.Get("/voters", h.handleListVoters)
		r.Get("/voters/fields", h.handleFieldValues)
		r.Get("/voters/fields/{field}/values", h.handleSingleFieldValues)
		r.Get("/voters/{registrationNumber}", h.handleGetVoter)
		r.Get("/participation/score", h.handleParticipationScore)
		r.Get("/map/stats", h.handleMapStats)
		r.Post("/turnout", h.handleTurnout)
		r.Post("/turnout/export", h.handleTurnoutExport)
	})

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] encode response failed: %v", err)
	}
}

// writeError maps the domain error taxonomy to HTTP statuses. Execution and
// configuration failures surface as a generic internal error so query text
// and stack detail never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: validation.Code, Message: validation.Message})
		return
	}
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Message: notFound.Message})
		return
	}
	log.Printf("[API] internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "internal_error", Message: "internal server error"})
}

func intParam(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (h *Handler) handleListVoters(w http.ResponseWriter, r *http.Request) {
	spec, err := filter.Normalize(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	voters, err := h.service.ListVoters(r.Context(), spec, repository.ListOptions{
		Projection: domain.ProjectionAddress,
		Limit:      intParam(r, "limit", 100),
		Offset:     intParam(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"voters": votersToAPI(voters), "count": len(voters)})
}

func (h *Handler) handleGetVoter(w http.ResponseWriter, r *http.Request) {
	regNum := chi.URLParam(r, "registrationNumber")
	if !filter.ValidRegistrationNumber(regNum) {
		writeError(w, domain.ErrValidation("invalid_registration_number",
			"registration number %q must be exactly 8 digits", regNum))
		return
	}

	voter, err := h.service.GetVoter(r.Context(), regNum)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voterToAPI(voter))
}

func (h *Handler) handleFieldValues(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fieldsRaw := strings.TrimSpace(query.Get("fields"))
	if fieldsRaw == "" {
		writeError(w, domain.ErrValidation("missing_fields", "fields parameter is required"))
		return
	}
	query.Del("fields")

	fields := make([]domain.VoterField, 0)
	for _, key := range strings.Split(fieldsRaw, ",") {
		field, ok := filter.FieldForParam(strings.TrimSpace(key))
		if !ok {
			writeError(w, domain.ErrValidation("unknown_field", "unsupported lookup field %q", key))
			return
		}
		fields = append(fields, field)
	}

	spec, err := filter.Normalize(query)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.service.FieldValues(r.Context(), fields, spec, intParam(r, "limit", 200))
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make(map[string]analytics.FieldValuesResult, len(results))
	for field, res := range results {
		payload[string(field)] = res
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": payload})
}

func (h *Handler) handleSingleFieldValues(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "field")
	field, ok := filter.FieldForParam(key)
	if !ok {
		writeError(w, domain.ErrValidation("unknown_field", "unsupported lookup field %q", key))
		return
	}

	spec, err := filter.Normalize(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.service.FieldValues(r.Context(), []domain.VoterField{field}, spec, intParam(r, "limit", 200))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results[field])
}

func (h *Handler) handleParticipationScore(w http.ResponseWriter, r *http.Request) {
	spec, err := filter.Normalize(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.ParticipationScore(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleMapStats(w http.ResponseWriter, r *http.Request) {
	spec, err := filter.Normalize(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	if spec.Geography == nil || spec.Geography.Box == nil {
		writeError(w, domain.ErrValidation("missing_bbox", "bbox parameter is required for map statistics"))
		return
	}

	result, err := h.service.MapStats(r.Context(), *spec.Geography.Box, spec.Criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeTurnoutRequest(r *http.Request) (domain.TurnoutRequest, error) {
	var req domain.TurnoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.TurnoutRequest{}, domain.ErrValidation("invalid_body", "malformed turnout request body")
	}
	return req, nil
}

func (h *Handler) handleTurnout(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurnoutRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Turnout(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTurnoutExport(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurnoutRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Turnout(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	buf, err := h.exporter.WriteWorkbook(resp)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("turnout-%s.xlsx", resp.Metadata.RequestID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(buf); err != nil {
		log.Printf("[API] write workbook failed: %v", err)
	}
}
