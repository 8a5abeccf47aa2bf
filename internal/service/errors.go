package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrConflict           = errors.New("already exists")
	ErrTokenNotFound      = errors.New("token not found")
	ErrNotFound           = errors.New("not found")
)
