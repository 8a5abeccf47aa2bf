package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
}

type Token struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"index;not null"           json:"user_id"`
	AccessToken  string    `gorm:"index;not null"           json:"access_token"`
	RefreshToken string    `gorm:"index;not null"           json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  uint   `gorm:"index;not null"           json:"user_id"`
	Content string `gorm:"not null"                 json:"content"`
}

// UserTokens is the users-tokens join row returned by token-info.
type UserTokens struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
