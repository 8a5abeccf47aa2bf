package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokolovdm/socialnet/internal/models"
	"github.com/sokolovdm/socialnet/internal/repo"
	"github.com/sokolovdm/socialnet/internal/tokens"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Token{}, &models.Post{}))
	return db
}

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()

	return &AuthService{
		Repo:  repo.New(newTestDB(t)),
		Codec: tokens.NewCodec([]byte("test-jwt-secret"), 15*time.Minute, 7*24*time.Hour),
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "empty username", username: "", password: "secret"},
		{name: "empty password", username: "user", password: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(ctx, tt.username, tt.password)
			require.Error(t, err)
			assert.Nil(t, user)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthService_Register_SuccessAndConflict(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "Secret123", user.PasswordHash)

	_, err = svc.Register(ctx, "alice", "Secret123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)

	res, err := svc.Login(context.Background(), "alice", "pw1")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_IssuesAndPersistsPair(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	claims, err := svc.Codec.Parse(res.AccessToken)
	require.NoError(t, err)
	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, "alice", claims.Username)

	stored, err := svc.Repo.FindAccessToken(ctx, res.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, res.RefreshToken, stored.RefreshToken)
}

func TestAuthService_Login_MultiplePairsCoexist(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)

	first, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)

	stored, err := svc.Repo.FindAccessToken(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.NotNil(t, stored)

	stored, err = svc.Repo.FindAccessToken(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestAuthService_Login_SingleSessionPrunesPriorPairs(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	svc.SingleSession = true
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)

	first, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)

	stored, err := svc.Repo.FindAccessToken(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, stored)

	stored, err = svc.Repo.FindAccessToken(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestAuthService_Refresh_UnknownTokenRejectedBeforeVerification(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)

	// Not even a parseable JWT: the store lookup must reject it first.
	newAccess, claims, err := svc.Refresh(context.Background(), "not-a-valid-jwt")
	require.Error(t, err)
	assert.Empty(t, newAccess)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestAuthService_Refresh_DeletedTokenRejectedWhileSignatureStillValid(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Repo.DeleteRefreshToken(ctx, res.RefreshToken))

	// Signature still verifies, but the row is gone.
	_, parseErr := svc.Codec.Parse(res.RefreshToken)
	require.NoError(t, parseErr)

	_, _, err = svc.Refresh(ctx, res.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestAuthService_Refresh_StoredButExpiredToken(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)

	expiredCodec := &tokens.Codec{Secret: svc.Codec.Secret, AccessTTL: time.Minute, RefreshTTL: -time.Minute}
	expiredRefresh, err := expiredCodec.SignRefresh(user.ID, user.Username)
	require.NoError(t, err)
	require.NoError(t, svc.Repo.SaveTokens(ctx, user.ID, "some-access", expiredRefresh))

	_, _, err = svc.Refresh(ctx, expiredRefresh)
	require.Error(t, err)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}

func TestAuthService_Refresh_ReissuesAccessKeepsRefresh(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)

	newAccess, claims, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, newAccess)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, "alice", claims.Username)

	// New access token is re-paired with the same refresh token.
	stored, err := svc.Repo.FindAccessToken(ctx, newAccess)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, res.RefreshToken, stored.RefreshToken)

	// The old pair is untouched.
	old, err := svc.Repo.FindAccessToken(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.NotNil(t, old)
}

func TestAuthService_LogOut_DeletesAccessOnly(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)

	require.NoError(t, svc.LogOut(ctx, res.AccessToken))

	stored, err := svc.Repo.FindAccessToken(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Idempotent.
	require.NoError(t, svc.LogOut(ctx, res.AccessToken))
}

func TestAuthService_GetTokenInfo(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)

	_, err = svc.GetTokenInfo(ctx, user.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	res, err := svc.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)

	info, err := svc.GetTokenInfo(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, info.ID)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, res.AccessToken, info.AccessToken)
	assert.Equal(t, res.RefreshToken, info.RefreshToken)
}
