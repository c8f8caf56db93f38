// Package handlers provides HTTP handlers for portfolio simulations.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/simulation"
)

// maxRequestBytes bounds simulation request bodies.
const maxRequestBytes = 1 << 20

const contentTypeMsgpack = "application/msgpack"

// Handler handles simulation HTTP requests
type Handler struct {
	service *simulation.Service
	log     zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(service *simulation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "simulation").Logger(),
	}
}

// HandleRunSimulation handles POST /api/v1/simulations
//
// The body is JSON, or YAML when Content-Type names yaml. The response is JSON
// unless the client accepts application/msgpack.
func (h *Handler) HandleRunSimulation(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.Run(r.Context(), req)
	if err != nil {
		if simulation.IsInvalidRequest(err) {
			h.writeValidationError(w, r, err)
			return
		}
		h.log.Error().Err(err).Msg("Simulation failed")
		h.writeError(w, r, http.StatusInternalServerError, "Simulation failed: "+err.Error())
		return
	}

	h.write(w, r, http.StatusOK, resp)
}

// HandleGetDefaults handles GET /api/v1/simulations/defaults
func (h *Handler) HandleGetDefaults(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, http.StatusOK, h.service.Defaults())
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*simulation.Request, error) {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()

	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return simulation.ParseScenario(data)
	}

	var req simulation.Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// validationErrorResponse lists every rejected field.
type validationErrorResponse struct {
	Error   string                 `json:"error" msgpack:"error"`
	Details []mcts.ValidationError `json:"details" msgpack:"details"`
}

func (h *Handler) writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := validationErrorResponse{Error: "Invalid simulation request", Details: []mcts.ValidationError{}}

	var errs mcts.ValidationErrors
	var cfgErr *mcts.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		resp.Details = cfgErr.Errors
	case errors.As(err, &errs):
		resp.Details = errs
	}

	h.write(w, r, http.StatusBadRequest, resp)
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack)
}

// write encodes data as msgpack when the client asks for it, JSON otherwise.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if !wantsMsgpack(r) {
		h.writeJSON(w, status, data)
		return
	}

	payload, err := msgpack.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode msgpack response")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encoding failed"})
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to write msgpack response")
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.write(w, r, status, map[string]string{
		"error": message,
	})
}
