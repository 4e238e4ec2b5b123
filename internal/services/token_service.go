package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/config"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/utils"
)

var (
	ErrInvalidAccessToken = apierrors.New(apierrors.KindUnauthorized, "invalid or expired access token")
)

// Claims is what a validated access token says about its bearer.
type Claims struct {
	UserID    uint64
	Username  string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessTokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 access tokens and opaque refresh tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	clockSkew  time.Duration
	timeFunc   func() time.Time
	log        logrus.FieldLogger
}

// NewTokenService fails when the signing secret is missing or too short; callers treat
// that as fatal at boot.
func NewTokenService(cfg *config.Config, log logrus.FieldLogger) (*TokenService, error) {
	if len(cfg.JWTSecret) < constants.MinJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", constants.MinJWTSecretLength)
	}

	return &TokenService{
		signingKey: []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL(),
		clockSkew:  constants.AccessTokenLeeway,
		timeFunc:   time.Now,
		log:        log,
	}, nil
}

// IssueAccessToken signs a token for the user and returns it with its expiry.
func (s *TokenService) IssueAccessToken(userID uint64, username string) (string, time.Time, error) {
	now := s.timeFunc()
	expiresAt := now.Add(s.accessTTL)

	claims := accessTokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

// IssueRefreshToken returns a random opaque token. It carries no claims and is only a
// lookup key.
func (s *TokenService) IssueRefreshToken() (string, error) {
	return utils.GenerateToken(constants.RefreshTokenBytes)
}

// ValidateAccessToken verifies signature, issuer, audience and expiry.
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&accessTokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		s.log.WithField("reason", validationFailureReason(err)).Debug("Access token rejected")
		return nil, ErrInvalidAccessToken
	}

	claims, ok := token.Claims.(*accessTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		s.log.WithField("subject", claims.Subject).Debug("Access token has a non-numeric subject")
		return nil, ErrInvalidAccessToken
	}

	result := &Claims{
		UserID:    userID,
		Username:  claims.Username,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}

	return result, nil
}

func validationFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "audience"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing claim"
	default:
		return "invalid"
	}
}
