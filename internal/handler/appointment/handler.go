package appointment

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service *appointment.Service
	pager   handler.Pager
}

func NewHandler(service *appointment.Service, pager handler.Pager) *Handler {
	return &Handler{service: service, pager: pager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)

		appointments.POST("/:id/cancel", h.transition(appointment.ActionCancel))
		appointments.POST("/:id/complete", h.transition(appointment.ActionComplete))
		appointments.POST("/:id/queue", h.transition(appointment.ActionQueue))
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	var req model.CreateAppointmentRequest
	if err := handler.Bind(c, &req); err != nil {
		handler.RespondWithError(c, err)
		return
	}

	result, err := h.service.CreateAppointment(c.Request.Context(), actor, req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusCreated, result)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	filter, err := h.filter(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	rows, total, err := h.service.ListAppointments(c.Request.Context(), actor, filter)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithPage(c, rows, filter.Page, total)
}

func (h *Handler) filter(c *gin.Context) (model.AppointmentFilter, error) {
	filter := model.AppointmentFilter{Page: h.pager.Page(c)}

	doctorID, err := handler.OptionalInt64Query(c, "doctor_id")
	if err != nil {
		return filter, err
	}
	filter.DoctorID = doctorID

	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperrors.NewValidation("patient_id", "Invalid patient ID.")
		}
		filter.PatientID = &id
	}

	if raw := c.Query("status"); raw != "" {
		status := model.AppointmentStatus(raw)
		switch status {
		case model.AppointmentStatusScheduled, model.AppointmentStatusInQueue,
			model.AppointmentStatusCompleted, model.AppointmentStatusCanceled:
			filter.Status = &status
		default:
			return filter, apperrors.NewValidation("status", "Unknown appointment status.")
		}
	}

	if raw := c.Query("date"); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			return filter, apperrors.NewValidation("date", "Invalid date format. Use YYYY-MM-DD.")
		}
		filter.Date = &date
	}
	return filter, nil
}

// UpdateAppointment accepts partial bodies. A status key is dropped before
// decoding; status only changes through the lifecycle endpoints.
func (h *Handler) UpdateAppointment(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		handler.RespondWithError(c, apperrors.NewValidationMessage("Invalid request body."))
		return
	}
	delete(raw, "status")

	var req model.UpdateAppointmentRequest
	body, err := json.Marshal(raw)
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		handler.RespondWithError(c, apperrors.NewValidationMessage("Invalid request body."))
		return
	}

	apt, err := h.service.UpdateAppointment(c.Request.Context(), actor, id, req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) transition(action appointment.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, id, ok := h.target(c)
		if !ok {
			return
		}

		result, err := h.service.Transition(c.Request.Context(), actor, id, action)
		if err != nil {
			handler.RespondWithError(c, err)
			return
		}

		handler.RespondWithSuccess(c, http.StatusOK, result)
	}
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	set, err := h.service.DeleteAppointment(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, gin.H{
		"appointment_id": id,
		"is_active":      false,
		"affected":       set.Counts(),
	})
}

// target resolves the caller and the :id path parameter, rendering the
// error itself when either is missing.
func (h *Handler) target(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return model.Actor{}, uuid.Nil, false
	}
	id, err := handler.UUIDParam(c, "id", "appointment")
	if err != nil {
		handler.RespondWithError(c, err)
		return model.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
