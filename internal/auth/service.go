package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/patient-care-portal/internal/audit"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("username or email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidUser        = errors.New("invalid user")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type Service interface {
	Register(ctx context.Context, username, email, password string, roles []string) (*User, error)
	Login(ctx context.Context, username, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
	// CheckPassword verifies a stored credential without issuing a token.
	CheckPassword(ctx context.Context, username, password string) error
}

type service struct {
	users       UserStore
	audit       audit.Service
	logger      *zap.Logger
	jwtSecret   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

type AuthServiceConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

func NewService(users UserStore, audit audit.Service, logger *zap.Logger, config AuthServiceConfig) Service {
	expiry := config.TokenExpiry
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &service{
		users:       users,
		audit:       audit,
		logger:      logger,
		jwtSecret:   []byte(config.JWTSecret),
		tokenExpiry: expiry,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Register(ctx context.Context, username, email, password string, roles []string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: username is required and password must be at least 8 characters", ErrInvalidUser)
	}
	for _, role := range roles {
		if !validRole(role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		Roles:        roles,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   audit.EventModify,
		Action:      "REGISTER",
		Resource:    "user",
		ResourceID:  user.ID,
		Status:      "success",
		Sensitivity: "HIGH",
		Details: audit.Details(map[string]interface{}{
			"username": username,
			"roles":    roles,
		}),
	})

	s.logger.Info("staff user registered", zap.String("user_id", user.ID), zap.Strings("roles", roles))
	return user, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		s.audit.LogEvent(ctx, &audit.AuditEvent{
			EventType:   audit.EventLogin,
			Action:      "LOGIN",
			Resource:    "user",
			Status:      "failure",
			Sensitivity: "HIGH",
			Details:     audit.Details(map[string]interface{}{"username": username}),
		})
		return nil, err
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	s.audit.LogEvent(audit.WithActor(ctx, user.ID), &audit.AuditEvent{
		EventType:   audit.EventLogin,
		Action:      "LOGIN",
		Resource:    "user",
		ResourceID:  user.ID,
		Status:      "success",
		Sensitivity: "HIGH",
	})

	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *service) CheckPassword(ctx context.Context, username, password string) error {
	_, err := s.authenticate(ctx, username, password)
	return err
}

// authenticate hides whether the username or the password was wrong.
func (s *service) authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *service) generateToken(user *User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenExpiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
			Subject:   user.ID,
		},
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Deactivated accounts lose access before their tokens expire.
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil || user.Status != StatusActive {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	return s.users.FindByID(ctx, userID)
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist:
		return true
	}
	return false
}
