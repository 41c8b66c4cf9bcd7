package medical

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/medical"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service  *medical.Service
	patients repository.PatientRepository
	pager    handler.Pager
}

func NewHandler(service *medical.Service, patients repository.PatientRepository, pager handler.Pager) *Handler {
	return &Handler{service: service, patients: patients, pager: pager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	records := r.Group("/medical-records")
	{
		records.POST("", h.CreateMedicalRecord)
		records.GET("", h.ListMedicalRecords)
		records.GET("/:id", h.GetMedicalRecord)
	}
}

func (h *Handler) CreateMedicalRecord(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	var req model.CreateMedicalRecordRequest
	if err := handler.Bind(c, &req); err != nil {
		handler.RespondWithError(c, err)
		return
	}

	record, err := h.service.CreateMedicalRecord(c.Request.Context(), actor, req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusCreated, record)
}

func (h *Handler) ListMedicalRecords(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	filter := model.MedicalRecordFilter{Page: h.pager.Page(c)}
	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.RespondWithError(c, apperrors.NewValidation("patient_id", "Invalid patient ID."))
			return
		}
		p, err := h.patients.GetByUUID(c.Request.Context(), id)
		if err != nil {
			handler.RespondWithError(c, err)
			return
		}
		filter.PatientID = &p.ID
	}

	rows, total, err := h.service.ListMedicalRecords(c.Request.Context(), actor, filter)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithPage(c, rows, filter.Page, total)
}

func (h *Handler) GetMedicalRecord(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	id, err := handler.IDParam(c, "id", "medical record")
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	record, err := h.service.GetMedicalRecord(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, record)
}
