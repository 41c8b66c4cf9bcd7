package patient

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
)

type Handler struct {
	service *patient.Service
	pager   handler.Pager
}

func NewHandler(service *patient.Service, pager handler.Pager) *Handler {
	return &Handler{service: service, pager: pager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.PATCH("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeactivatePatient)
		patients.POST("/:id/reactivate", h.ReactivatePatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	var req model.CreatePatientRequest
	if err := handler.Bind(c, &req); err != nil {
		handler.RespondWithError(c, err)
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), actor, req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusCreated, p)
}

// ListPatients shows active patients unless is_active=false is asked for.
// Basic-level callers get the reduced projection.
func (h *Handler) ListPatients(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	active, err := handler.OptionalBoolQuery(c, "is_active", true)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	filter := model.PatientFilter{
		IsActive: &active,
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     h.pager.Page(c),
	}

	rows, total, scope, err := h.service.ListPatients(c.Request.Context(), actor, filter)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithPage(c, access.Present(scope, rows), filter.Page, total)
}

func (h *Handler) GetPatient(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	p, scope, err := h.service.GetPatient(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, access.PresentOne(scope, p))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := handler.Bind(c, &req); err != nil {
		handler.RespondWithError(c, err)
		return
	}

	p, err := h.service.UpdatePatient(c.Request.Context(), actor, id, req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) DeactivatePatient(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) ReactivatePatient(c *gin.Context) {
	h.setActive(c, true)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	var (
		set model.CascadeSet
		err error
	)
	if active {
		set, err = h.service.ReactivatePatient(c.Request.Context(), actor, id)
	} else {
		set, err = h.service.DeactivatePatient(c.Request.Context(), actor, id)
	}
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, gin.H{
		"patient_id": id,
		"is_active":  active,
		"affected":   set.Counts(),
	})
}

func target(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return model.Actor{}, uuid.Nil, false
	}
	id, err := handler.UUIDParam(c, "id", "patient")
	if err != nil {
		handler.RespondWithError(c, err)
		return model.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
