package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/model"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
	"github.com/xxxsen/estate/internal/pkg/jwt"
	"github.com/xxxsen/estate/internal/pkg/password"
	"github.com/xxxsen/estate/internal/pkg/timeutil"
	"github.com/xxxsen/estate/internal/tokenstore"
)

type CodeVerifier interface {
	VerifyCode(ctx context.Context, email, purpose, code string) error
}

type AuthService struct {
	users         UserStore
	verifier      CodeVerifier
	blacklist     tokenstore.Blacklist
	jwtSecret     []byte
	jwtTTL        time.Duration
	allowRegister bool
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string
	Code     string
}

type AuthResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
}

func NewAuthService(users UserStore, verifier CodeVerifier, blacklist tokenstore.Blacklist, secret []byte, ttl time.Duration, allowRegister bool) *AuthService {
	return &AuthService{
		users:         users,
		verifier:      verifier,
		blacklist:     blacklist,
		jwtSecret:     secret,
		jwtTTL:        ttl,
		allowRegister: allowRegister,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if !s.allowRegister {
		return nil, appErr.ErrRegisterDisabled
	}
	email := normalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, appErr.ErrInvalid
	}
	if err := password.Validate(input.Password); err != nil {
		return nil, err
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = model.RoleBuyer
	}
	if role != model.RoleBuyer && role != model.RoleAgent {
		return nil, appErr.ErrInvalid
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, appErr.ErrConflict
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return nil, err
	}
	if err := s.verifier.VerifyCode(ctx, email, model.VerificationPurposeRegister, input.Code); err != nil {
		return nil, err
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		PasswordHash: hash,
		Verified:     1,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID), zap.String("role", role))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, appErr.ErrUnauthorized
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, claims, err := jwt.GenerateToken(user.ID, user.Email, user.Role, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: claims.ExpiresTime().Unix()}, nil
}

// Logout revokes the token identified by jti for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return appErr.ErrInvalid
	}
	return s.blacklist.Revoke(ctx, jti, expiresAt)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if err := password.Validate(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.ErrInvalid
		}
		return err
	}
	if err := s.verifier.VerifyCode(ctx, email, model.VerificationPurposeResetPassword, code); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := password.Validate(newPassword); err != nil {
		return err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := password.Compare(user.PasswordHash, oldPassword); err != nil {
		return appErr.ErrUnauthorized
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, userID, plain string) error {
	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash, timeutil.NowUnix())
}
