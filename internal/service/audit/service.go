package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Actions recorded in the trail.
const (
	ActionCreate     = "create"
	ActionRead       = "read"
	ActionList       = "list"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionCancel     = "cancel"
	ActionComplete   = "complete"
	ActionQueue      = "queue"
	ActionDeactivate = "deactivate"
	ActionReactivate = "reactivate"
	ActionLogin      = "login"
)

type Service struct {
	repo repository.AuditRepository
	sink *zap.Logger
}

// NewService writes entries to repo and mirrors them to sink. A nil sink
// disables the mirror.
func NewService(repo repository.AuditRepository, sink *zap.Logger) *Service {
	if sink == nil {
		sink = zap.NewNop()
	}
	return &Service{repo: repo, sink: sink}
}

type LogOptions struct {
	Changes interface{}
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, actor model.Actor, action, entityType, entityID string, opts *LogOptions) error {
	var changes json.RawMessage
	if opts != nil && opts.Changes != nil {
		raw, err := json.Marshal(opts.Changes)
		if err != nil {
			return err
		}
		changes = raw
	}

	info := RequestInfoFrom(ctx)
	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     actor.UserID,
		Role:       actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		RequestID:  info.RequestID,
		CreatedAt:  time.Now().UTC(),
	}

	s.sink.Info("audit",
		zap.String("audit_id", entry.ID.String()),
		zap.Int64("user_id", entry.UserID),
		zap.String("role", entry.Role.String()),
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.String("ip", entry.IPAddress),
		zap.String("request_id", entry.RequestID),
	)

	return s.repo.Create(ctx, entry)
}

// Record is Log for call sites that must not fail because auditing did.
func (s *Service) Record(ctx context.Context, actor model.Actor, action, entityType, entityID string, opts *LogOptions) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, actor, action, entityType, entityID, opts); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to write audit log")
	}
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, before)
}
