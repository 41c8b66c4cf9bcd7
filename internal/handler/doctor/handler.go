package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
)

type Handler struct {
	service doctor.Service
	pager   handler.Pager
}

func NewHandler(service doctor.Service, pager handler.Pager) *Handler {
	return &Handler{service: service, pager: pager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	page := h.pager.Page(c)
	rows, total, scope, err := h.service.ListDoctors(c.Request.Context(), actor, page)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithPage(c, access.Present(scope, rows), page, total)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	id, err := handler.IDParam(c, "id", "doctor")
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	d, scope, err := h.service.GetDoctor(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, access.PresentOne(scope, d))
}
