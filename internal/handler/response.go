package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Meta    *Pagination       `json:"meta,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

func RespondWithPage(c *gin.Context, data interface{}, page model.Page, total int) {
	resp := NewSuccessResponse(data)
	resp.Meta = &Pagination{
		Page:       page.Number,
		PageSize:   page.Size,
		Total:      total,
		TotalPages: (total + page.Size - 1) / page.Size,
	}
	c.JSON(http.StatusOK, resp)
}

// RespondWithError renders err in the error envelope. Anything that is not
// an AppError is logged and reported as a bare 500.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := apperrors.As(err)
	if !ok {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("Internal server error"))
		return
	}

	status := appErr.StatusCode()
	resp := NewErrorResponse(appErr.Message)
	resp.Errors = appErr.Fields
	if status >= http.StatusInternalServerError {
		log.Error().Err(appErr).Str("path", c.FullPath()).Msg("request failed")
		if appErr.Message == "" {
			resp.Message = "Internal server error"
		}
	}
	c.AbortWithStatusJSON(status, resp)
}
