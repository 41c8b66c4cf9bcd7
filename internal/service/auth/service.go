package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const (
	msgBadCredentials = "Invalid email or password."
	msgBadToken       = "Invalid or expired token."

	profileCacheTTL     = 5 * time.Minute
	profileCacheCleanup = 10 * time.Minute
)

type Service struct {
	userRepo   repository.UserRepository
	doctorRepo repository.DoctorRepository
	jwtSvc     auth.JWTService
	hasher     security.PasswordHasher
	auditor    *audit.Service
	// doctor profile ids by user id; a nil *int64 caches "no profile".
	profiles *cache.Cache
}

func NewService(userRepo repository.UserRepository, doctorRepo repository.DoctorRepository,
	jwtSvc auth.JWTService, hasher security.PasswordHasher, auditor *audit.Service) *Service {
	return &Service{
		userRepo:   userRepo,
		doctorRepo: doctorRepo,
		jwtSvc:     jwtSvc,
		hasher:     hasher,
		auditor:    auditor,
		profiles:   cache.New(profileCacheTTL, profileCacheCleanup),
	}
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.hasher.Burn(req.Password)
			return nil, apperrors.NewUnauthorized(msgBadCredentials)
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		log.Warn().Int64("user_id", user.ID).Msg("login with wrong password")
		return nil, apperrors.NewUnauthorized(msgBadCredentials)
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("This account has been disabled.")
	}
	if !user.Role.Valid() {
		return nil, apperrors.NewForbidden("This account has no clinic role.")
	}

	token, ttl, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	actor := model.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}
	s.auditor.Record(ctx, actor, audit.ActionLogin, "user", strconv.FormatInt(user.ID, 10), nil)

	return &model.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		User:        user,
	}, nil
}

// Authenticate turns a bearer token into the Actor of the request. Doctors
// get their profile id attached; a doctor without a profile still
// authenticates and is refused later by the access layer.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.Actor{}, apperrors.NewUnauthorized(msgBadToken)
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Actor{}, apperrors.NewUnauthorized(msgBadToken)
	}

	actor := model.Actor{UserID: claims.UserID, Email: claims.Email, Role: role}
	if role == model.RoleDoctor {
		profile, err := s.doctorProfile(ctx, claims.UserID)
		if err != nil {
			return model.Actor{}, err
		}
		actor.DoctorID = profile
	}
	return actor, nil
}

func (s *Service) doctorProfile(ctx context.Context, userID int64) (*int64, error) {
	key := strconv.FormatInt(userID, 10)
	if cached, ok := s.profiles.Get(key); ok {
		return cached.(*int64), nil
	}

	var profile *int64
	doctor, err := s.doctorRepo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		id := doctor.ID
		profile = &id
	case apperrors.Is(err, apperrors.ErrNotFound):
		log.Debug().Int64("user_id", userID).Msg("doctor has no profile")
	default:
		return nil, err
	}

	s.profiles.SetDefault(key, profile)
	return profile, nil
}

// ForgetProfile drops a cached doctor profile lookup.
func (s *Service) ForgetProfile(userID int64) {
	s.profiles.Delete(strconv.FormatInt(userID, 10))
}
