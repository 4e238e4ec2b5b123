package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken         = apierrors.New(apierrors.KindConflict, "username already exists")
	ErrInvalidCredentials    = apierrors.New(apierrors.KindUnauthorized, "invalid username or password")
	ErrInvalidRefreshToken   = apierrors.New(apierrors.KindUnauthorized, "invalid or expired refresh token")
	ErrInvalidInvitationCode = apierrors.New(apierrors.KindValidation, "invalid invitation code")
	ErrUsernameLength        = apierrors.New(apierrors.KindValidation,
		fmt.Sprintf("username must be between %d and %d characters", constants.MinUsernameLength, constants.MaxUsernameLength))
	ErrPasswordTooShort = apierrors.New(apierrors.KindValidation,
		fmt.Sprintf("password must be at least %d characters", constants.MinPasswordLength))
	ErrUserNotFound = apierrors.New(apierrors.KindNotFound, "user not found")
)

// AuthConfig holds the deployment settings of the auth workflows.
type AuthConfig struct {
	BcryptCost      int
	InvitationCode  string
	AdminUserID     uint64
	RefreshTokenTTL time.Duration
}

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	tokens    *TokenService
	cfg       AuthConfig
	timeFunc  func() time.Time
	log       logrus.FieldLogger

	// dummyHash is compared against when the username is unknown so both login failures
	// cost the same.
	dummyHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.RefreshTokenRepository, tokens *TokenService, cfg AuthConfig, log logrus.FieldLogger) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)

	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		tokens:    tokens,
		cfg:       cfg,
		timeFunc:  time.Now,
		log:       log,
		dummyHash: dummy,
	}
}

// RegisterInput represents the required information to create a new user.
type RegisterInput struct {
	Username       string
	Password       string
	InvitationCode string
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Username string
	Password string
}

// AuthResult is the token pair handed to a client after register, login or refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Register creates a user and signs them in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if s.cfg.InvitationCode != "" &&
		subtle.ConstantTimeCompare([]byte(input.InvitationCode), []byte(s.cfg.InvitationCode)) != 1 {
		return nil, ErrInvalidInvitationCode
	}

	username := strings.TrimSpace(input.Username)
	if n := utf8.RuneCountInString(username); n < constants.MinUsernameLength || n > constants.MaxUsernameLength {
		return nil, ErrUsernameLength
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	key := models.NormalizeUsername(username)
	if _, err := s.userRepo.FindByUsernameKey(ctx, key); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		UsernameKey:  key,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logging.FromContext(ctx, s.log).WithField("user_id", user.ID).Info("User registered")

	return s.issueTokens(ctx, user)
}

// Login verifies credentials and signs the user in. Unknown usernames and wrong passwords
// fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.FindByUsernameKey(ctx, models.NormalizeUsername(input.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh redeems a refresh token for a new pair. A token is redeemable once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	next, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.timeFunc()
	replacement := &models.RefreshToken{
		Token:     next,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}

	consumed, err := s.tokenRepo.Rotate(ctx, refreshToken, now, replacement)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenInvalid) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	accessToken, expiresAt, err := s.tokens.IssueAccessToken(consumed.UserID, consumed.User.Username)
	if err != nil {
		return nil, err
	}

	s.pruneExpired(ctx, consumed.UserID, now)

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: next,
		ExpiresAt:    expiresAt,
	}, nil
}

// Me returns the user behind the access token.
func (s *AuthService) Me(ctx context.Context, userID uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// IsAdmin reports whether userID is the configured admin, or the first registered user
// when no admin is configured.
func (s *AuthService) IsAdmin(userID uint64) bool {
	if s.cfg.AdminUserID != 0 {
		return userID == s.cfg.AdminUserID
	}
	return userID == constants.FirstUserID
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*AuthResult, error) {
	accessToken, expiresAt, err := s.tokens.IssueAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.timeFunc()
	s.pruneExpired(ctx, user.ID, now)

	if err := s.tokenRepo.Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) pruneExpired(ctx context.Context, userID uint64, now time.Time) {
	if _, err := s.tokenRepo.DeleteExpiredForUser(ctx, userID, now); err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithField("user_id", userID).
			Warn("Failed to prune expired refresh tokens")
	}
}
