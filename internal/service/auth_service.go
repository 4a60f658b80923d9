package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/logger"
	"github.com/noah-isme/redtape-api/pkg/storage"
)

type authUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordTx(ctx context.Context, tx *sqlx.Tx, id, digest string, updatedAt time.Time) error
}

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindActive(ctx context.Context, id string, now time.Time) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserTx(ctx context.Context, tx *sqlx.Tx, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type passwordResetMailer interface {
	SendPasswordReset(ctx context.Context, user models.User, token string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService provides admin login, sessions and password resets.
type AuthService struct {
	tx        txProvider
	users     authUserStore
	sessions  sessionStore
	mailer    passwordResetMailer
	resets    tokenSigner
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time

	dummyOnce   sync.Once
	dummyDigest []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(tx txProvider, users authUserStore, sessions sessionStore, mailer passwordResetMailer, resets tokenSigner, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{
		tx:        tx,
		users:     users,
		sessions:  sessions,
		mailer:    mailer,
		resets:    resets,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Login authenticates a user, opens a session and returns an access token bound to it.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.burnDummyCompare(req.Password)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	issuedAt := s.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
		CreatedAt: issuedAt,
		ExpiresAt: issuedAt.Add(s.config.AccessTokenExpiry),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("create session", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create session")
	}

	accessToken, err := s.generateAccessToken(user, session.ID, issuedAt, session.ExpiresAt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	s.logger.Info("admin signed in", zap.String("user_id", user.ID), zap.String("ip", req.IP))
	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        models.UserInfo{ID: user.ID, Email: user.Email, Admin: user.Admin},
	}, nil
}

// Logout ends the session referenced by the access token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "session missing")
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return appErrors.Internal(err, "failed to end session")
	}
	return nil
}

// ValidateToken parses and validates an access token and confirms its session is still open.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if err := s.ValidateSession(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateSession checks that the session referenced by claims has not ended.
func (s *AuthService) ValidateSession(ctx context.Context, claims *models.JWTClaims) error {
	if claims == nil || claims.SessionID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "session missing")
	}
	session, err := s.sessions.FindActive(ctx, claims.SessionID, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "session has ended")
		}
		return appErrors.Internal(err, "failed to load session")
	}
	if session.UserID != claims.UserID {
		return appErrors.Clone(appErrors.ErrUnauthorized, "session has ended")
	}
	return nil
}

// ForgotPassword emails a reset link when the address belongs to a user. The
// caller always gets the same answer.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("lookup user for password reset", logger.Email("email", req.Email), zap.Error(err))
		}
		s.burnDummyCompare(req.Email)
		return nil
	}

	if s.resets == nil {
		s.logger.Warn("password reset signer missing")
		return nil
	}
	token, _, err := s.resets.Sign(user.ID, digestFingerprint(user.PasswordDigest))
	if err != nil {
		s.logger.Error("sign password reset token", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, *user, token); err != nil {
			s.logger.Error("enqueue password reset", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

// ResetPassword sets a new password from a reset token and ends every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid reset password payload")
	}
	if s.resets == nil {
		return appErrors.Clone(appErrors.ErrInvalidToken, "password reset link is invalid or has expired")
	}

	userID, fingerprint, _, err := s.resets.Verify(req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "password reset link has expired")
		}
		return appErrors.Clone(appErrors.ErrInvalidToken, "password reset link is invalid or has expired")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "password reset link is invalid or has expired")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if !hmac.Equal([]byte(fingerprint), []byte(digestFingerprint(user.PasswordDigest))) {
		return appErrors.Clone(appErrors.ErrInvalidToken, "password reset link has already been used")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}

	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.users.UpdatePasswordTx(ctx, tx, user.ID, string(digest), s.now().UTC()); err != nil {
		s.logger.Error("update password", zap.String("user_id", user.ID), zap.Error(err))
		return appErrors.Internal(err, "failed to update password")
	}
	if err := s.sessions.DeleteByUserTx(ctx, tx, user.ID); err != nil {
		s.logger.Error("end sessions after password reset", zap.String("user_id", user.ID), zap.Error(err))
		return appErrors.Internal(err, "failed to update password")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit password reset")
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// CleanupSessions deletes sessions past their expiry.
func (s *AuthService) CleanupSessions(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("cleanup sessions", zap.Error(err))
		return 0, err
	}
	return removed, nil
}

func (s *AuthService) generateAccessToken(user *models.User, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID:    user.ID,
		SessionID: sessionID,
		Email:     user.Email,
		Admin:     user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

// burnDummyCompare spends a bcrypt comparison so unknown emails take as long as known ones.
func (s *AuthService) burnDummyCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = bcrypt.GenerateFromPassword([]byte("red-tape-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyDigest, []byte(password))
}

// digestFingerprint binds reset tokens to the current password digest.
func digestFingerprint(digest string) string {
	sum := sha256.Sum256([]byte(digest))
	return hex.EncodeToString(sum[:12])
}
