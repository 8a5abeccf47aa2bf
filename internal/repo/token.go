package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sokolovdm/socialnet/internal/models"
)

func (r *GormRepo) SaveTokens(ctx context.Context, userID uint, accessToken, refreshToken string) error {
	pair := models.Token{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	return r.DB.WithContext(ctx).Create(&pair).Error
}

func (r *GormRepo) FindAccessToken(ctx context.Context, accessToken string) (*models.Token, error) {
	return r.findToken(ctx, "access_token = ?", accessToken)
}

func (r *GormRepo) FindRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	return r.findToken(ctx, "refresh_token = ?", refreshToken)
}

func (r *GormRepo) findToken(ctx context.Context, cond, value string) (*models.Token, error) {
	var pair models.Token
	if err := r.DB.WithContext(ctx).Where(cond, value).First(&pair).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pair, nil
}

func (r *GormRepo) DeleteAccessToken(ctx context.Context, accessToken string) error {
	return r.DB.WithContext(ctx).Where("access_token = ?", accessToken).Delete(&models.Token{}).Error
}

func (r *GormRepo) DeleteRefreshToken(ctx context.Context, refreshToken string) error {
	return r.DB.WithContext(ctx).Where("refresh_token = ?", refreshToken).Delete(&models.Token{}).Error
}

func (r *GormRepo) DeleteUserTokens(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{}).Error
}

// FindUserTokens joins users and tokens for the token-info endpoint.
func (r *GormRepo) FindUserTokens(ctx context.Context, userID uint) (*models.UserTokens, error) {
	var row models.UserTokens
	err := r.DB.WithContext(ctx).
		Table("users").
		Select("users.id, users.username, tokens.access_token, tokens.refresh_token").
		Joins("INNER JOIN tokens ON tokens.user_id = users.id").
		Where("users.id = ?", userID).
		Order("tokens.id DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}
