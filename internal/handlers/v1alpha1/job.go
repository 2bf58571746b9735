// Package v1alpha1 exposes the job REST surface on chi.
package v1alpha1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/handlers/validator"
	"github.com/ateliercolor/presstrack/internal/projection"
	"github.com/ateliercolor/presstrack/internal/service"
	"github.com/ateliercolor/presstrack/internal/service/mappers"
	"github.com/ateliercolor/presstrack/internal/store"
	"github.com/ateliercolor/presstrack/internal/workflow"
)

type JobHandler struct {
	srv        *service.JobService
	thresholds projection.Thresholds
	validator  *validator.Validator
}

func NewJobHandler(srv *service.JobService, thresholds projection.Thresholds) *JobHandler {
	v := validator.NewValidator()
	v.Register(validator.NewJobValidationRules()...)
	return &JobHandler{
		srv:        srv,
		thresholds: thresholds,
		validator:  v,
	}
}

func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Post("/", h.CreateJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Post("/transitions", h.TransitionJob)
			r.Get("/history", h.GetHistory)
		})
	})
}

func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := &service.JobFilter{
		MachineType: r.URL.Query().Get("machineType"),
		ClientName:  r.URL.Query().Get("clientName"),
	}
	if statuses := r.URL.Query().Get("status"); statuses != "" {
		filter.Statuses = strings.Split(statuses, ",")
	}

	jobs, err := h.srv.ListJobs(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobListToApi(jobs, h.thresholds, time.Now().UTC()))
}

func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var form api.JobCreate
	if err := render.DecodeJSON(r.Body, &form); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "malformed body"})
		return
	}
	if err := h.validator.Struct(form); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: err.Error()})
		return
	}

	job, err := h.srv.CreateJob(r.Context(), form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mappers.JobToApi(*job, h.thresholds, time.Now().UTC()))
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "malformed job id"})
		return
	}

	job, err := h.srv.GetJob(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobToApi(*job, h.thresholds, time.Now().UTC()))
}

func (h *JobHandler) TransitionJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "malformed job id"})
		return
	}

	var request api.TransitionRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "malformed body"})
		return
	}
	if err := h.validator.Struct(request); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: err.Error()})
		return
	}

	job, err := h.srv.Transition(r.Context(), id, request)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobToApi(*job, h.thresholds, time.Now().UTC()))
}

func (h *JobHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "malformed job id"})
		return
	}

	entries, err := h.srv.GetHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]api.TransitionRecord, 0, len(entries))
	for _, entry := range entries {
		out = append(out, mappers.TransitionToApi(entry))
	}
	render.JSON(w, r, out)
}

// writeError maps the service and workflow error taxonomy onto HTTP codes.
// A stale write is a conflict the caller resolves by reloading and retrying.
func (h *JobHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	message := err.Error()

	switch err.(type) {
	case *workflow.ErrIllegalTransition:
		code = http.StatusConflict
	case *workflow.ErrMissingComment:
		code = http.StatusBadRequest
	case *workflow.ErrUnknownStatus:
		code = http.StatusBadRequest
	case *workflow.ErrForbidden:
		code = http.StatusForbidden
	case *service.ErrCreationForbidden:
		code = http.StatusForbidden
	case *service.ErrResourceNotFound:
		code = http.StatusNotFound
	case *service.ErrInvalidInitialStatus:
		code = http.StatusBadRequest
	default:
		if errors.Is(err, store.ErrStaleWrite) {
			code = http.StatusConflict
			message = "job was modified concurrently, reload and retry"
		}
	}

	render.Status(r, code)
	render.JSON(w, r, api.Error{Message: message})
}
