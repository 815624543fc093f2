package services

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"cosmic-chat/config"
	"cosmic-chat/internal/domain/user"
	"cosmic-chat/internal/repository"
	cosmic_errors "cosmic-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// RefreshInput identifies the account to re-issue a token for. Either
// field alone is enough; UserID wins when both are present.
type RefreshInput struct {
	Email  string
	UserID string
}

type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	User      user.Snapshot `json:"user"`
}

type AccessClaims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Name == "" || in.Email == "" || len(in.Password) < 8 {
		return AuthResponse{}, cosmic_errors.ErrInvalidInput
	}

	if _, err := s.userRepo.GetUserByEmail(ctx, in.Email); err == nil {
		return AuthResponse{}, cosmic_errors.ErrAlreadyExists
	} else if !errors.Is(err, cosmic_errors.ErrNotFound) {
		return AuthResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	now := time.Now().UTC()
	newUser := &user.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        sql.NullString{String: in.Email, Valid: true},
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return AuthResponse{}, err
	}

	return s.issueFor(*newUser)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || in.Password == "" {
		return AuthResponse{}, cosmic_errors.ErrInvalidInput
	}

	u, err := s.userRepo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, cosmic_errors.ErrNotFound) {
			return AuthResponse{}, cosmic_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return AuthResponse{}, cosmic_errors.ErrUnauthorized
	}

	return s.issueFor(u)
}

// RefreshToken re-issues an access token for a known account. The
// endpoint trusts stored identity rather than a refresh credential, so
// a missing or unknown account is the only failure mode.
func (s *AuthService) RefreshToken(ctx context.Context, in RefreshInput) (AuthResponse, error) {
	var (
		u   user.User
		err error
	)
	switch {
	case strings.TrimSpace(in.UserID) != "":
		id, parseErr := uuid.Parse(strings.TrimSpace(in.UserID))
		if parseErr != nil {
			return AuthResponse{}, cosmic_errors.ErrInvalidInput
		}
		u, err = s.userRepo.GetUserByID(ctx, id)
	case strings.TrimSpace(in.Email) != "":
		u, err = s.userRepo.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(in.Email)))
	default:
		return AuthResponse{}, cosmic_errors.ErrInvalidInput
	}
	if err != nil {
		if errors.Is(err, cosmic_errors.ErrNotFound) {
			return AuthResponse{}, cosmic_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	return s.issueFor(u)
}

func (s *AuthService) issueFor(u user.User) (AuthResponse, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		UserID: u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.accessTTL.Seconds()),
		User:      u.Snapshot(),
	}, nil
}

// ParseAccessToken verifies the signature and expiry of a bearer token
// and returns its claims.
func (s *AuthService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, cosmic_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, cosmic_errors.ErrUnauthorized
	}
	if claims.UserID == "" {
		return nil, cosmic_errors.ErrUnauthorized
	}
	return claims, nil
}

type ctxKey string

const userIDCtxKey ctxKey = "auth_user_id"

// WithUserContext stamps the authenticated user id onto the context.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts the authenticated user id, if present.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uuid.UUID)
	return id, ok
}

// HTTPStatus maps service errors to response status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, cosmic_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, cosmic_errors.ErrUnauthorized), errors.Is(err, cosmic_errors.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, cosmic_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, cosmic_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cosmic_errors.ErrConflict), errors.Is(err, cosmic_errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, cosmic_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, cosmic_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
