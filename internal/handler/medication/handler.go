package medication

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/medication"
)

type Handler struct {
	service medication.Service
	pager   handler.Pager
}

func NewHandler(service medication.Service, pager handler.Pager) *Handler {
	return &Handler{service: service, pager: pager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medications := r.Group("/medications")
	{
		medications.GET("", h.ListMedications)
		medications.GET("/:id", h.GetMedication)
	}
}

func (h *Handler) ListMedications(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	page := h.pager.Page(c)
	rows, total, err := h.service.ListMedications(c.Request.Context(), actor, page)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithPage(c, rows, page, total)
}

func (h *Handler) GetMedication(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	id, err := handler.IDParam(c, "id", "medication")
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	m, err := h.service.GetMedication(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, m)
}
