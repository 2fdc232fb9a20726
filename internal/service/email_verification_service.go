package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/model"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
	"github.com/xxxsen/estate/internal/pkg/password"
	"github.com/xxxsen/estate/internal/pkg/timeutil"
)

const verificationCodeDigits = 6

type VerificationOptions struct {
	ExpireMinutes   int
	CooldownSeconds int
	MaxAttempts     int
}

type EmailVerificationService struct {
	repo   VerificationCodeStore
	users  UserStore
	sender EmailSender
	opts   VerificationOptions
	now    func() int64
}

func NewEmailVerificationService(repo VerificationCodeStore, users UserStore, sender EmailSender, opts VerificationOptions) *EmailVerificationService {
	if opts.ExpireMinutes <= 0 {
		opts.ExpireMinutes = 10
	}
	if opts.CooldownSeconds < 0 {
		opts.CooldownSeconds = 0
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &EmailVerificationService{repo: repo, users: users, sender: sender, opts: opts, now: timeutil.NowUnix}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validEmail(email string) bool {
	if email == "" || !strings.Contains(email, "@") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validPurpose(purpose string) bool {
	return purpose == model.VerificationPurposeRegister || purpose == model.VerificationPurposeResetPassword
}

func (s *EmailVerificationService) SendCode(ctx context.Context, email, purpose string) error {
	email = normalizeEmail(email)
	if !validEmail(email) || !validPurpose(purpose) {
		return appErr.ErrInvalid
	}
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && purpose == model.VerificationPurposeRegister:
		return appErr.ErrConflict
	case errors.Is(err, appErr.ErrNotFound) && purpose == model.VerificationPurposeResetPassword:
		// Same answer as for a known address so the endpoint can't be used to probe accounts.
		logutil.GetLogger(ctx).Info("reset code requested for unknown email")
		return nil
	case err != nil && !errors.Is(err, appErr.ErrNotFound):
		return err
	}
	if err := s.ensureCooldown(ctx, email, purpose); err != nil {
		return err
	}
	code, err := generateCode(verificationCodeDigits)
	if err != nil {
		return err
	}
	hash, err := password.Hash(code)
	if err != nil {
		return err
	}
	now := s.now()
	item := &model.EmailVerificationCode{
		ID:        newID(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		Used:      0,
		Attempts:  0,
		Ctime:     now,
		ExpiresAt: now + int64(s.opts.ExpireMinutes*60),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return err
	}
	subject, body := verificationMessage(purpose, code, s.opts.ExpireMinutes)
	if err := s.sender.Send(email, subject, body); err != nil {
		logutil.GetLogger(ctx).Error("send verification email failed", zap.String("purpose", purpose), zap.Error(err))
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func verificationMessage(purpose, code string, expireMinutes int) (string, string) {
	if purpose == model.VerificationPurposeResetPassword {
		return "Reset your password",
			fmt.Sprintf("Your password reset code is %s. It expires in %d minutes. If you did not ask for it, ignore this email.", code, expireMinutes)
	}
	return "Your verification code",
		fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, expireMinutes)
}

func (s *EmailVerificationService) VerifyCode(ctx context.Context, email, purpose, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || !validPurpose(purpose) {
		return appErr.ErrInvalid
	}
	item, err := s.repo.LatestByEmail(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.ErrInvalid
		}
		return err
	}
	if item.Used != 0 {
		return appErr.ErrInvalid
	}
	if item.ExpiresAt <= s.now() {
		return appErr.ErrExpired
	}
	if item.Attempts >= s.opts.MaxAttempts {
		return appErr.ErrTooMany
	}
	if err := s.repo.ReserveAttempt(ctx, item.ID, s.opts.MaxAttempts); err != nil {
		return err
	}
	if err := password.Compare(item.CodeHash, code); err != nil {
		return appErr.ErrInvalid
	}
	if err := s.repo.MarkUsed(ctx, item.ID); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.ErrInvalid
		}
		return err
	}
	return nil
}

func (s *EmailVerificationService) PurgeExpired(ctx context.Context, before int64) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, before)
}

func (s *EmailVerificationService) ensureCooldown(ctx context.Context, email, purpose string) error {
	item, err := s.repo.LatestByEmail(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil
		}
		return err
	}
	if item.Ctime+int64(s.opts.CooldownSeconds) > s.now() {
		return appErr.ErrTooMany
	}
	return nil
}

func generateCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
