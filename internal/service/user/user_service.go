package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/email"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrInvalidPassword    = errors.New("password must be at most 72 bytes")
)

const resetTokenTTL = time.Hour

type UserUseCase interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type Mailer interface {
	SendMessage(ctx context.Context, to, subject, body string) error
}

type UserService struct {
	users       repository.UserRepository
	mailer      Mailer
	secret      string
	tokenTTL    time.Duration
	frontendURL string
	hashCost    int
	now         func() time.Time
	log         *logrus.Entry
}

type UserServiceOption func(*UserService)

// WithFrontendURL sets the base of the password reset link.
func WithFrontendURL(url string) UserServiceOption {
	return func(s *UserService) {
		s.frontendURL = strings.TrimRight(url, "/")
	}
}

func WithHashCost(cost int) UserServiceOption {
	return func(s *UserService) {
		s.hashCost = cost
	}
}

func NewUserService(users repository.UserRepository, mailer Mailer, secret string, tokenTTL time.Duration, log *logrus.Entry, opts ...UserServiceOption) *UserService {
	s := &UserService{
		users:       users,
		mailer:      mailer,
		secret:      secret,
		tokenTTL:    tokenTTL,
		frontendURL: "http://localhost:3000",
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
		log:         log.WithField("component", "users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the account and sends a welcome email. A failed email does not fail registration.
func (s *UserService) Register(ctx context.Context, address, password string) (*domain.User, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Email: address, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	subject, body := email.Welcome(address)
	if err := s.mailer.SendMessage(ctx, address, subject, body); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to send welcome email")
	}
	return user, nil
}

// Login checks the credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, address, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, address)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.secret, user.ID, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}
	return s.setPassword(ctx, id, newPassword)
}

// ForgotPassword mails a reset link when the address belongs to an account.
// Unknown addresses are only logged, so callers cannot tell them apart.
func (s *UserService) ForgotPassword(ctx context.Context, address string) error {
	log := s.log.WithField("email", address)

	user, err := s.users.GetByEmail(ctx, address)
	if errors.Is(err, repository.ErrUserNotFound) {
		log.Warn("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		log.WithError(err).Error("password reset lookup failed")
		return fmt.Errorf("get user: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(token), s.now().Add(resetTokenTTL)); err != nil {
		log.WithError(err).Error("failed to store reset token")
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.frontendURL + "/auth/reset-password?token=" + url.QueryEscape(token)
	subject, body := email.PasswordReset(link)
	if err := s.mailer.SendMessage(ctx, user.Email, subject, body); err != nil {
		log.WithError(err).Error("failed to send password reset email")
		return fmt.Errorf("send reset email: %w", err)
	}
	log.Info("password reset email sent")
	return nil
}

func (s *UserService) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	_, err := s.users.GetByResetToken(ctx, hashResetToken(token), s.now())
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get user by reset token: %w", err)
	}
	return true, nil
}

// ResetPassword replaces the password of the token holder. The token is single use.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.GetByResetToken(ctx, hashResetToken(token), s.now())
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("get user by reset token: %w", err)
	}
	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	s.log.WithField("user_id", user.ID).Info("password reset")
	return nil
}

func (s *UserService) setPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrInvalidPassword
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashResetToken is the stored form of a reset token.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var (
	_ UserUseCase   = (*UserService)(nil)
	_ auth.Accounts = (*UserService)(nil)
)
