package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/authz"
	"github.com/campodata/maquinaria-api/internal/models"
	"github.com/campodata/maquinaria-api/internal/notification"
	"github.com/campodata/maquinaria-api/internal/repository"
)

type ProgramacionHandler struct {
	repo          repository.ProgramacionRepository
	notifications notification.Service
	logger        zerolog.Logger
}

func NewProgramacionHandler(repo repository.ProgramacionRepository, notifications notification.Service, logger zerolog.Logger) *ProgramacionHandler {
	return &ProgramacionHandler{
		repo:          repo,
		notifications: notifications,
		logger:        logger.With().Str("handler", "programacion").Logger(),
	}
}

type createProgramacionRequest struct {
	ZonaID     int     `json:"zona_id"`
	Hacienda   string  `json:"hacienda"`
	Suerte     string  `json:"suerte"`
	Labor      string  `json:"labor"`
	Maquina    *string `json:"maquina"`
	OperadorID *string `json:"operador_id"`
	FechaLabor string  `json:"fecha_labor"`
}

func (h *ProgramacionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req createProgramacionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Hacienda == "" || req.Suerte == "" || req.Labor == "" {
		writeError(w, http.StatusBadRequest, "hacienda, suerte and labor are required")
		return
	}
	fecha, err := time.Parse("2006-01-02", req.FechaLabor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "fecha_labor must be YYYY-MM-DD")
		return
	}

	prog, err := h.repo.Create(r.Context(), models.Programacion{
		ZonaID:        req.ZonaID,
		Hacienda:      strings.TrimSpace(req.Hacienda),
		Suerte:        strings.TrimSpace(req.Suerte),
		Labor:         strings.TrimSpace(req.Labor),
		Maquina:       req.Maquina,
		OperadorID:    req.OperadorID,
		SolicitadoPor: userID,
		FechaLabor:    fecha,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create programación")
		writeError(w, http.StatusInternalServerError, "failed to create programación")
		return
	}

	writeJSON(w, http.StatusCreated, prog)
}

func (h *ProgramacionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ProgramacionFilter{
		Estado:     models.ProgramacionEstado(r.URL.Query().Get("estado")),
		Hacienda:   r.URL.Query().Get("hacienda"),
		OperadorID: r.URL.Query().Get("operador_id"),
	}
	if raw := r.URL.Query().Get("zona_id"); raw != "" {
		if zona, err := strconv.Atoi(raw); err == nil {
			filter.ZonaID = &zona
		}
	}
	if raw := r.URL.Query().Get("fecha"); raw != "" {
		if fecha, err := time.Parse("2006-01-02", raw); err == nil {
			filter.Fecha = &fecha
		}
	}

	programaciones, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list programaciones")
		writeError(w, http.StatusInternalServerError, "failed to list programaciones")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"programaciones": programaciones,
	})
}

func (h *ProgramacionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["programacionID"]
	prog, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "programación not found")
			return
		}
		h.logger.Error().Err(err).Str("programacion_id", id).Msg("failed to fetch programación")
		writeError(w, http.StatusInternalServerError, "failed to fetch programación")
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// Aprobar moves a pending programación to aprobada and notifies the
// requesting técnico directly.
func (h *ProgramacionHandler) Aprobar(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["programacionID"]
	prog, err := h.repo.SetEstado(r.Context(), id, models.EstadoAprobada, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusConflict, "programación is not pending")
			return
		}
		h.logger.Error().Err(err).Str("programacion_id", id).Msg("failed to approve programación")
		writeError(w, http.StatusInternalServerError, "failed to approve programación")
		return
	}

	if err := h.notifications.NotifyAprobacion(r.Context(), prog, userID); err != nil {
		h.logger.Warn().Err(err).Str("programacion_id", id).Msg("approval notification failed")
	}

	writeJSON(w, http.StatusOK, prog)
}

type rechazarRequest struct {
	Motivo string `json:"motivo"`
}

func (h *ProgramacionHandler) Rechazar(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req rechazarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := mux.Vars(r)["programacionID"]
	prog, err := h.repo.SetEstado(r.Context(), id, models.EstadoRechazada, &req.Motivo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusConflict, "programación is not pending")
			return
		}
		h.logger.Error().Err(err).Str("programacion_id", id).Msg("failed to reject programación")
		writeError(w, http.StatusInternalServerError, "failed to reject programación")
		return
	}

	if err := h.notifications.NotifyRechazo(r.Context(), prog, userID, req.Motivo); err != nil {
		h.logger.Warn().Err(err).Str("programacion_id", id).Msg("rejection notification failed")
	}

	writeJSON(w, http.StatusOK, prog)
}

// Iniciar stamps the start of execution and publishes an INICIO record
// scoped to the programación's zone and hacienda.
func (h *ProgramacionHandler) Iniciar(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["programacionID"]
	prog, err := h.repo.Iniciar(r.Context(), id, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusConflict, "programación is not approved")
			return
		}
		h.logger.Error().Err(err).Str("programacion_id", id).Msg("failed to start programación")
		writeError(w, http.StatusInternalServerError, "failed to start programación")
		return
	}

	if err := h.notifications.NotifyLaborIniciada(r.Context(), prog, userID); err != nil {
		h.logger.Warn().Err(err).Str("programacion_id", id).Msg("start notification failed")
	}

	writeJSON(w, http.StatusOK, prog)
}

type finalizarRequest struct {
	Horometro  float64 `json:"horometro"`
	TarifaHora float64 `json:"tarifa_hora"`
	ReciboURL  *string `json:"recibo_url"`
}

// Finalizar stamps the end of execution, costs the labor from its duration
// and hourly rate, and publishes a FIN record carrying duracion_min.
func (h *ProgramacionHandler) Finalizar(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req finalizarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := mux.Vars(r)["programacionID"]
	current, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "programación not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch programación")
		return
	}

	horaFin := time.Now()
	var costo float64
	if current.HoraInicio != nil {
		costo = horaFin.Sub(*current.HoraInicio).Hours() * req.TarifaHora
	}

	prog, err := h.repo.Finalizar(r.Context(), id, horaFin, req.Horometro, costo, req.ReciboURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusConflict, "programación is not executing")
			return
		}
		h.logger.Error().Err(err).Str("programacion_id", id).Msg("failed to finish programación")
		writeError(w, http.StatusInternalServerError, "failed to finish programación")
		return
	}

	if err := h.notifications.NotifyLaborFinalizada(r.Context(), prog, userID); err != nil {
		h.logger.Warn().Err(err).Str("programacion_id", id).Msg("finish notification failed")
	}

	writeJSON(w, http.StatusOK, prog)
}

type reordenarRequest struct {
	IDs []string `json:"ids"`
}

// Reordenar persists a drag-and-drop route order as sequential integers.
func (h *ProgramacionHandler) Reordenar(w http.ResponseWriter, r *http.Request) {
	var req reordenarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.repo.ReorderRuta(r.Context(), req.IDs); err != nil {
		h.logger.Error().Err(err).Msg("failed to reorder route")
		writeError(w, http.StatusInternalServerError, "failed to reorder route")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
