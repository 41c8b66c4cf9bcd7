package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const actorKey = "actor"

// SetActor stores the authenticated caller on the request.
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}

// CurrentActor returns the caller stored by the auth middleware.
func CurrentActor(c *gin.Context) (model.Actor, error) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, apperrors.NewUnauthorized("Authentication credentials were not provided.")
	}
	actor, ok := v.(model.Actor)
	if !ok {
		return model.Actor{}, apperrors.NewUnauthorized("Authentication credentials were not provided.")
	}
	return actor, nil
}

// Bind decodes the JSON body and runs the binding validators.
func Bind(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return validator.Translate(err)
	}
	return nil
}

func UUIDParam(c *gin.Context, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation(name, "Invalid "+label+" ID.")
	}
	return id, nil
}

func IDParam(c *gin.Context, name, label string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidation(name, "Invalid "+label+" ID.")
	}
	return id, nil
}

// Pager reads page and page_size query parameters.
type Pager struct {
	DefaultSize int
	MaxSize     int
}

func (p Pager) Page(c *gin.Context) model.Page {
	number, _ := strconv.Atoi(c.Query("page"))
	size, err := strconv.Atoi(c.Query("page_size"))
	if err != nil || size < 1 {
		size = p.DefaultSize
	}
	return model.NewPage(number, size, p.MaxSize)
}

// OptionalInt64Query returns nil when the parameter is absent.
func OptionalInt64Query(c *gin.Context, name string) (*int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidation(name, "Must be an integer.")
	}
	return &v, nil
}

// OptionalBoolQuery returns def when the parameter is absent.
func OptionalBoolQuery(c *gin.Context, name string, def bool) (bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, apperrors.NewValidation(name, "Must be true or false.")
	}
	return v, nil
}
