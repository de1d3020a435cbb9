package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, repo *store.MemoryStore, username, password string, role models.Role, branch int64) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)

	user := &models.User{Username: username, PasswordHash: hash, Role: role, Email: username + "@example.com"}
	if branch > 0 {
		user.BranchID = sql.NullInt64{Int64: branch, Valid: true}
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func TestLoginIssuesParsableToken(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "maria", "s3cret", models.RoleCustodian, 3)
	auth := NewAuthService(repo, "test-secret", time.Hour)

	token, got, err := auth.Login(context.Background(), "maria", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	actor, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: user.ID, Role: models.RoleCustodian, BranchID: 3}, actor)

	_, got, err = auth.Login(context.Background(), "Maria", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := store.NewMemoryStore()
	seedUser(t, repo, "maria", "s3cret", models.RoleCustodian, 3)
	auth := NewAuthService(repo, "test-secret", time.Hour)

	var uErr *UnauthorizedError
	_, _, err := auth.Login(context.Background(), "maria", "wrong")
	assert.True(t, errors.As(err, &uErr))

	_, _, err = auth.Login(context.Background(), "nobody", "s3cret")
	assert.True(t, errors.As(err, &uErr))

	var vErr *ValidationError
	_, _, err = auth.Login(context.Background(), " ", "")
	assert.True(t, errors.As(err, &vErr))
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	repo := store.NewMemoryStore()
	auth := NewAuthService(repo, "test-secret", time.Minute)
	actor := Actor{ID: 7, Role: models.RoleProcurementManager}

	issuedAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issuedAt }
	token, err := auth.IssueToken(actor)
	require.NoError(t, err)

	auth.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = auth.ParseToken(token)
	var uErr *UnauthorizedError
	assert.True(t, errors.As(err, &uErr))

	other := NewAuthService(repo, "another-secret", time.Hour)
	foreign, err := other.IssueToken(actor)
	require.NoError(t, err)
	auth.now = time.Now
	_, err = auth.ParseToken(foreign)
	assert.True(t, errors.As(err, &uErr))

	_, err = auth.ParseToken("not-a-token")
	assert.True(t, errors.As(err, &uErr))
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	auth := NewAuthService(store.NewMemoryStore(), "test-secret", time.Hour)

	claims := Claims{UserID: 1, Role: "auditor", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	var uErr *UnauthorizedError
	assert.True(t, errors.As(err, &uErr))
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("pa55")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "pa55"))
	assert.False(t, CheckPassword(hash, "pa56"))
	assert.False(t, CheckPassword("not-a-hash", "pa55"))
}
