package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/auth"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
	}
}

// RegisterProtectedRoutes adds the routes that need a verified token.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := handler.Bind(c, &req); err != nil {
		handler.RespondWithError(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, resp)
}

func (h *Handler) Me(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	handler.RespondWithSuccess(c, http.StatusOK, gin.H{
		"user_id":           actor.UserID,
		"email":             actor.Email,
		"role":              actor.Role,
		"doctor_profile_id": actor.DoctorID,
	})
}
