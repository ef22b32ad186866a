package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(ttl time.Duration) *SessionService {
	return NewSessionService("test-secret", "lms-test", ttl, nil)
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestSessions(time.Hour)

	token, err := svc.Issue("u-1", "alice@example.com", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.False(t, claims.IsSuperAdmin)
	assert.Equal(t, "lms-test", claims.Issuer)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestSessions(time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidSession, token)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	svc := newTestSessions(time.Hour)
	other := NewSessionService("other-secret", "lms-test", time.Hour, nil)

	token, err := other.Issue("u-1", "alice@example.com", false)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewSessionService("test-secret", "lms-test", time.Hour, nil)
	svc.ttl = -time.Minute

	token, err := svc.Issue("u-1", "alice@example.com", false)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSuperAdminFlagRoundTrip(t *testing.T) {
	svc := newTestSessions(time.Hour)

	token, err := svc.Issue("u-root", "root@example.com", true)
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, claims.IsSuperAdmin)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, h.Compare(hash, "correct horse battery staple"))
	assert.False(t, h.Compare(hash, "wrong password"))
	assert.False(t, h.Compare("not-a-hash", "anything"))
}
