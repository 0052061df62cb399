package restserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chrissnell/tempoaqi/internal/constants"
	"github.com/chrissnell/tempoaqi/internal/log"
	"github.com/chrissnell/tempoaqi/internal/query"
	"github.com/chrissnell/tempoaqi/internal/types"
	"github.com/chrissnell/tempoaqi/pkg/responseformat"
)

const (
	msgCoordinatesRequired = "Coordenadas requeridas"
	msgInternalError       = "Internal server error"

	maxBodyBytes = 1 << 20
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// QueryTempo computes composite indices around the posted coordinate
func (h *Handlers) QueryTempo(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	logger := h.controller.logger.With("request_id", req.Header.Get(log.RequestIDHeader))

	var body TempoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		logger.Infow("undecodable request body", "error", err)
		h.writeError(w, req, http.StatusBadRequest, msgCoordinatesRequired)
		return
	}
	if body.Lat == nil || body.Lon == nil {
		h.writeError(w, req, http.StatusBadRequest, msgCoordinatesRequired)
		return
	}

	resp, err := h.controller.querier.Query(req.Context(), query.Request{
		Center:       types.SamplePoint{Lat: *body.Lat, Lon: *body.Lon},
		Points:       body.Points,
		RadiusMeters: body.Radius,
	})
	switch {
	case errors.Is(err, query.ErrInvalidCoordinates):
		logger.Infow("invalid coordinates", "error", err)
		h.writeError(w, req, http.StatusBadRequest, msgCoordinatesRequired)
		return
	case err != nil:
		logger.Errorw("query failed", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, msgInternalError)
		return
	}

	if err := h.formatter.WriteResponse(w, req, http.StatusOK, newTempoResponse(resp)); err != nil {
		logger.Errorw("error writing response", "error", err)
	}
}

// Health reports that the server is up
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: constants.ServiceName,
		Version: constants.Version,
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, message string) {
	if err := h.formatter.WriteError(w, req, status, message); err != nil {
		h.controller.logger.Errorw("error writing error response", "error", err)
	}
}
