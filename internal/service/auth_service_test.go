package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Login(t *testing.T) {
	svc := NewAuthService("admin", "password123", "test-secret")

	resp, err := svc.Login("admin", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.HostID)

	claims, err := svc.ValidateHostToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.HostID, claims.HostID)
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService("admin", "password123", "test-secret")

	_, err := svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("someone", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ParticipantTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("admin", "password123", "test-secret")

	token, err := svc.GenerateParticipantToken("ABC234", "p_1", "user-a")
	require.NoError(t, err)

	claims, err := svc.ValidateParticipantToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ABC234", claims.RoomCode)
	assert.Equal(t, "p_1", claims.ParticipantID)
	assert.Equal(t, "user-a", claims.UserID)
}

func TestAuthService_RejectsForeignSignature(t *testing.T) {
	svc := NewAuthService("admin", "password123", "test-secret")
	other := NewAuthService("admin", "password123", "other-secret")

	token, err := other.GenerateParticipantToken("ABC234", "p_1", "user-a")
	require.NoError(t, err)

	_, err = svc.ValidateParticipantToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateHostToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
