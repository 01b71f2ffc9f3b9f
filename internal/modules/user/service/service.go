package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/user/dto"
	"chimu.app/backend/internal/modules/user/repository"
	"chimu.app/backend/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var errInvalidCredentials = apperror.Unauthorized("invalid credentials")

type AuthService interface {
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error)
	GoogleLoginURL(state string) string
	GoogleCallback(ctx context.Context, code string) (*dto.AuthResponse, error)
}

// Provisioner creates accounts on behalf of someone else, e.g. when an instructor invites a TA by email.
type Provisioner interface {
	ProvisionByEmail(ctx context.Context, email string) (*entity.User, error)
}

// Service is the full user capability set wired by the server.
type Service interface {
	AuthService
	Provisioner
}

type Options struct {
	Secret             string
	TokenTTL           time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type authService struct {
	repo         repository.UserRepository
	secret       []byte
	tokenTTL     time.Duration
	googleConfig *oauth2.Config
	now          func() time.Time
}

func NewAuthService(repo repository.UserRepository, opts Options) Service {
	return &authService{
		repo:     repo,
		secret:   []byte(opts.Secret),
		tokenTTL: opts.TokenTTL,
		googleConfig: &oauth2.Config{
			ClientID:     opts.GoogleClientID,
			ClientSecret: opts.GoogleClientSecret,
			RedirectURL:  opts.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		now: time.Now,
	}
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperror.Internal("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.buildAuthResponse(user)
}

func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error) {
	email := normalizeEmail(input.Email)

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Internal("failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}

	user := &entity.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, apperror.Internal("failed to create user", err)
	}

	return s.buildAuthResponse(user)
}

// ProvisionByEmail returns the existing account for email or creates one with an unusable random password.
func (s *authService) ProvisionByEmail(ctx context.Context, email string) (*entity.User, error) {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user %s: %w", email, err)
	}

	hash, err := randomPasswordHash()
	if err != nil {
		return nil, err
	}

	user = &entity.User{Email: email, PasswordHash: hash}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.FindByEmail(ctx, email)
		}
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}

	logrus.WithField("email", email).Info("provisioned user account")
	return user, nil
}

func (s *authService) GoogleLoginURL(state string) string {
	return s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (s *authService) GoogleCallback(ctx context.Context, code string) (*dto.AuthResponse, error) {
	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.New(http.StatusUnauthorized, "failed to exchange google code", err)
	}

	resp, err := s.googleConfig.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, apperror.Internal("failed to get google user info", err)
	}
	defer resp.Body.Close()

	var googleUser dto.GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, apperror.Internal("failed to decode google user info", err)
	}

	user, err := s.upsertGoogleUser(ctx, googleUser)
	if err != nil {
		return nil, err
	}

	return s.buildAuthResponse(user)
}

func (s *authService) upsertGoogleUser(ctx context.Context, g dto.GoogleUser) (*entity.User, error) {
	if g.Email == "" || !g.VerifiedEmail {
		return nil, apperror.Unauthorized("google account email is not verified")
	}

	user, err := s.ProvisionByEmail(ctx, g.Email)
	if err != nil {
		return nil, apperror.Internal("failed to provision google user", err)
	}

	changed := false
	if user.GoogleID == nil || *user.GoogleID != g.ID {
		user.GoogleID = &g.ID
		changed = true
	}
	if user.Name == "" && g.Name != "" {
		user.Name = truncate(g.Name, 50)
		changed = true
	}
	if user.AvatarURL == nil && g.Picture != "" {
		user.AvatarURL = &g.Picture
		changed = true
	}

	if changed {
		if err := s.repo.Update(ctx, user); err != nil {
			logrus.WithError(err).WithField("email", user.Email).Warn("failed to store google profile")
		}
	}

	return user, nil
}

func (s *authService) buildAuthResponse(user *entity.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, apperror.Internal("failed to sign token", err)
	}

	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		User:        user,
	}, nil
}

func (s *authService) generateToken(user *entity.User) (string, int64, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, err
	}

	return signed, expiresAt.Unix(), nil
}

func randomPasswordHash() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
