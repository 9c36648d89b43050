package jwttoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/internal/jwttoken"
	dErrors "verimed/pkg/domain-errors"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := jwttoken.NewService("test-signing-key", "verimed", "verimed-api")

	token, err := svc.GenerateAccessToken("user-1", "compliance", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "compliance", claims.Role)
	assert.Equal(t, "verimed", claims.Issuer)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := jwttoken.NewService("test-signing-key", "verimed", "verimed-api")

	token, err := svc.GenerateAccessToken("user-1", "staff", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := jwttoken.NewService("signing-key-a", "verimed", "verimed-api")
	verifier := jwttoken.NewService("signing-key-b", "verimed", "verimed-api")

	token, err := issuer.GenerateAccessToken("user-1", "staff", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := jwttoken.NewService("test-signing-key", "verimed", "verimed-api")

	_, err := svc.Validate("not.a.token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestMiddlewareAdapter(t *testing.T) {
	svc := jwttoken.NewService("test-signing-key", "verimed", "verimed-api")
	adapter := jwttoken.NewMiddlewareAdapter(svc)

	token, err := svc.GenerateAccessToken("user-1", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}
