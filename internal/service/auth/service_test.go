package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)

	store.AddUser(model.User{ID: 1, Email: "boss@clinic.test", PasswordHash: hash, Role: model.RoleManager, IsActive: true})
	store.AddUser(model.User{ID: 2, Email: "house@clinic.test", PasswordHash: hash, Role: model.RoleDoctor, IsActive: true})
	store.AddUser(model.User{ID: 3, Email: "new@clinic.test", PasswordHash: hash, Role: model.RoleDoctor, IsActive: true})
	store.AddUser(model.User{ID: 4, Email: "gone@clinic.test", PasswordHash: hash, Role: model.RoleSecretary, IsActive: false})
	store.AddDoctor(model.Doctor{ID: 20, UserID: 2})

	svc := NewService(store.Users(), store.Doctors(),
		auth.NewJWTService("test-secret", "clinic-api", time.Hour),
		hasher, audit.NewService(store.Audit(), nil))
	return svc, store
}

func TestLogin(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, model.LoginRequest{Email: " Boss@Clinic.test", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.NotEmpty(t, resp.AccessToken)
	require.Len(t, store.AuditLogs(), 1)
	assert.Equal(t, audit.ActionLogin, store.AuditLogs()[0].Action)

	for _, req := range []model.LoginRequest{
		{Email: "boss@clinic.test", Password: "wrong-pass"},
		{Email: "nobody@clinic.test", Password: "s3cret-pass"},
		{Email: "gone@clinic.test", Password: "s3cret-pass"},
	} {
		_, err := svc.Login(ctx, req)
		assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized), req.Email)
	}
}

func TestAuthenticate_AttachesDoctorProfile(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, model.LoginRequest{Email: "house@clinic.test", Password: "s3cret-pass"})
	require.NoError(t, err)
	actor, err := svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, actor.Role)
	require.NotNil(t, actor.DoctorID)
	assert.Equal(t, int64(20), *actor.DoctorID)

	resp, err = svc.Login(ctx, model.LoginRequest{Email: "new@clinic.test", Password: "s3cret-pass"})
	require.NoError(t, err)
	actor, err = svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.False(t, actor.HasDoctorProfile())

	// Cached until forgotten.
	store.AddDoctor(model.Doctor{ID: 21, UserID: 3})
	actor, err = svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.False(t, actor.HasDoctorProfile())

	svc.ForgetProfile(3)
	actor, err = svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, actor.DoctorID)
	assert.Equal(t, int64(21), *actor.DoctorID)
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Authenticate(context.Background(), "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
