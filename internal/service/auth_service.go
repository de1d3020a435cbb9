package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload identifying an actor
type Claims struct {
	UserID   int64       `json:"user_id"`
	Role     models.Role `json:"role"`
	BranchID int64       `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthService authenticates staff and issues session tokens
type AuthService struct {
	users  store.UserRepository
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new auth service signing tokens with secret
func NewAuthService(users store.UserRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		logger: util.ComponentLogger("auth"),
		now:    time.Now,
	}
}

// HashPassword hashes password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies credentials and returns a signed token with the user
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		util.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return "", nil, &ValidationError{Field: "credentials", Reason: "username and password are required"}
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
			return "", nil, &UnauthorizedError{Reason: "invalid username or password"}
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		util.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn("Login rejected", zap.String("username", username))
		return "", nil, &UnauthorizedError{Reason: "invalid username or password"}
	}

	token, err := s.IssueToken(ActorFromUser(user))
	if err != nil {
		return "", nil, err
	}

	util.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("User logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return token, user, nil
}

// IssueToken signs an HS256 token for actor
func (s *AuthService) IssueToken(actor Actor) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   actor.ID,
		Role:     actor.Role,
		BranchID: actor.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", actor.ID),
			Issuer:    util.ServiceName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the actor it names
func (s *AuthService) ParseToken(tokenString string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Actor{}, &UnauthorizedError{Reason: "invalid or expired token"}
	}
	if !claims.Role.Valid() || claims.UserID <= 0 {
		return Actor{}, &UnauthorizedError{Reason: "invalid token claims"}
	}
	return Actor{ID: claims.UserID, Role: claims.Role, BranchID: claims.BranchID}, nil
}

// ActorFromUser builds the actor a user acts as
func ActorFromUser(user *models.User) Actor {
	actor := Actor{ID: user.ID, Role: user.Role}
	if user.BranchID.Valid {
		actor.BranchID = user.BranchID.Int64
	}
	return actor
}

// TokenTTL is the lifetime of issued tokens
func (s *AuthService) TokenTTL() time.Duration {
	return s.ttl
}
