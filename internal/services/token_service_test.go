package services

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-tracker-api/internal/logging"
)

func newTestTokenService(t *testing.T, mutate func(*TokenService)) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testConfig(), logging.Discard())
	require.NoError(t, err)
	if mutate != nil {
		mutate(svc)
	}
	return svc
}

func TestNewTokenService_RejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "too-short"

	_, err := NewTokenService(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestValidateAccessToken_RoundTrip(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, func(s *TokenService) {
		s.timeFunc = func() time.Time { return issuedAt }
	})

	token, expiresAt, err := svc.IssueAccessToken(7, "alice")
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), expiresAt)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.IssuedAt.Equal(issuedAt))
	assert.True(t, claims.ExpiresAt.Equal(expiresAt))
}

func TestValidateAccessToken_Rejections(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	issuer := newTestTokenService(t, func(s *TokenService) {
		s.timeFunc = func() time.Time { return issuedAt }
	})
	token, _, err := issuer.IssueAccessToken(7, "alice")
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator *TokenService
		token     string
	}{
		{
			name: "expired",
			validator: newTestTokenService(t, func(s *TokenService) {
				s.timeFunc = func() time.Time { return issuedAt.Add(2 * time.Hour) }
			}),
			token: token,
		},
		{
			name: "wrong issuer",
			validator: newTestTokenService(t, func(s *TokenService) {
				s.issuer = "someone-else"
				s.timeFunc = func() time.Time { return issuedAt }
			}),
			token: token,
		},
		{
			name: "wrong audience",
			validator: newTestTokenService(t, func(s *TokenService) {
				s.audience = "another-app"
				s.timeFunc = func() time.Time { return issuedAt }
			}),
			token: token,
		},
		{
			name: "different key",
			validator: newTestTokenService(t, func(s *TokenService) {
				s.signingKey = []byte("fedcba9876543210fedcba9876543210")
				s.timeFunc = func() time.Time { return issuedAt }
			}),
			token: token,
		},
		{
			name:      "garbage",
			validator: issuer,
			token:     "not.a.jwt",
		},
		{
			name:      "unsigned",
			validator: issuer,
			token:     unsignedVariant(token),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidAccessToken)
		})
	}
}

func TestValidateAccessToken_LeewayAcceptsSmallSkew(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	issuer := newTestTokenService(t, func(s *TokenService) {
		s.timeFunc = func() time.Time { return issuedAt }
	})
	token, expiresAt, err := issuer.IssueAccessToken(7, "alice")
	require.NoError(t, err)

	validator := newTestTokenService(t, func(s *TokenService) {
		s.timeFunc = func() time.Time { return expiresAt.Add(10 * time.Second) }
	})
	_, err = validator.ValidateAccessToken(token)
	assert.NoError(t, err)
}

func TestIssueRefreshToken_IsOpaqueAndUnique(t *testing.T) {
	svc := newTestTokenService(t, nil)

	a, err := svc.IssueRefreshToken()
	require.NoError(t, err)
	b, err := svc.IssueRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

// unsignedVariant swaps the header for alg "none" and drops the signature.
func unsignedVariant(token string) string {
	parts := strings.Split(token, ".")
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	return header + "." + parts[1] + "."
}
