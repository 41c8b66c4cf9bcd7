package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "clinic-api", time.Hour)
	user := &model.User{ID: 12, Email: "desk@clinic.test", Role: model.RoleSecretary}

	token, ttl, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, "secretary", claims.Role)
	assert.Equal(t, "12", claims.Subject)
}

func TestJWT_Rejects(t *testing.T) {
	svc := NewJWTService("secret", "clinic-api", time.Hour)
	user := &model.User{ID: 1, Role: model.RoleManager}
	token, _, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	_, err = NewJWTService("other", "clinic-api", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("secret", "someone-else", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := svc.(*jwtService)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
