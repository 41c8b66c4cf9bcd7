package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service *billing.Service
	pager   handler.Pager
}

func NewHandler(service *billing.Service, pager handler.Pager) *Handler {
	return &Handler{service: service, pager: pager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/billing")
	{
		payments.GET("", h.ListPayments)
		payments.POST("", h.CreatePayment)
	}
}

func (h *Handler) ListPayments(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	filter := model.PaymentFilter{Page: h.pager.Page(c)}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParsePaymentStatus(raw)
		if err != nil {
			handler.RespondWithError(c, apperrors.NewValidation("status", "Unknown payment status."))
			return
		}
		filter.Status = &status
	}

	rows, total, scope, err := h.service.ListPayments(c.Request.Context(), actor, filter)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithPage(c, access.Present(scope, rows), filter.Page, total)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	var req model.CreatePaymentRequest
	if err := handler.Bind(c, &req); err != nil {
		handler.RespondWithError(c, err)
		return
	}

	payment, err := h.service.CreatePayment(c.Request.Context(), actor, req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusCreated, payment)
}
