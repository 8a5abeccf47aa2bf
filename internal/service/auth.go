package service

import (
	"context"
	"fmt"

	"github.com/sokolovdm/socialnet/internal/events"
	"github.com/sokolovdm/socialnet/internal/hash"
	"github.com/sokolovdm/socialnet/internal/logging"
	"github.com/sokolovdm/socialnet/internal/models"
	"github.com/sokolovdm/socialnet/internal/repo"
	"github.com/sokolovdm/socialnet/internal/tokens"
)

type AuthService struct {
	Repo     *repo.GormRepo
	Codec    *tokens.Codec
	Producer *events.Producer

	// SingleSession deletes a user's prior token pairs on login, so at
	// most one pair per user is live at a time.
	SingleSession bool
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		if err == repo.ErrUserAlreadyExists {
			l.Warn("register_error", "status", 409, "reason", "user already exists")
			return nil, fmt.Errorf("%w: user %q", ErrConflict, username)
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, events.TopicUserEvents, user.ID, map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if user == nil || !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.Codec.SignAccess(user.ID, user.Username)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	refreshToken, err := s.Codec.SignRefresh(user.ID, user.Username)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	if s.SingleSession {
		if err := s.Repo.DeleteUserTokens(ctx, user.ID); err != nil {
			l.Error("login_failed", "status", 500, "error", err)
			return nil, err
		}
	}

	if err := s.Repo.SaveTokens(ctx, user.ID, accessToken, refreshToken); err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, events.TopicUserEvents, user.ID, map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("login_successful")
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh mints a new access token against a stored refresh token. The
// store check runs before signature verification, so a deleted pair is
// rejected even while its signature is still valid. The refresh token
// itself is never rotated; the new access token is re-paired with it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, *tokens.Claims, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	stored, err := s.Repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return "", nil, err
	}
	if stored == nil {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh token not found")
		return "", nil, fmt.Errorf("%w: refresh token", ErrTokenNotFound)
	}

	claims, err := s.Codec.Parse(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid or expired refresh token")
		return "", nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", nil, err
	}

	newAccess, err := s.Codec.SignAccess(userID, claims.Username)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return "", nil, err
	}

	if err := s.Repo.SaveTokens(ctx, userID, newAccess, refreshToken); err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return "", nil, err
	}

	l.Info("refresh_successful")
	return newAccess, claims, nil
}

// LogOut deletes the access token row only. Idempotent.
func (s *AuthService) LogOut(ctx context.Context, accessToken string) error {
	return s.Repo.DeleteAccessToken(ctx, accessToken)
}

func (s *AuthService) GetTokenInfo(ctx context.Context, userID uint) (*models.UserTokens, error) {
	row, err := s.Repo.FindUserTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: no stored tokens for user %d", ErrTokenNotFound, userID)
	}
	return row, nil
}

func (s *AuthService) publish(ctx context.Context, topic string, key uint, event map[string]any) {
	if err := s.Producer.PublishEvent(ctx, topic, fmt.Sprint(key), event); err != nil {
		logging.FromContext(ctx).Warn("kafka_publish_error", "topic", topic, "error", err)
	}
}
