package service

import "errors"

// Error kinds every public operation resolves to. Handlers map these to
// status codes; the messages are the ones clients see, so token failures
// never say which cryptographic check failed.
var (
	ErrValidation = errors.New("all fields are required")
	ErrConflict   = errors.New("user with email or username already exists")
	ErrNotFound   = errors.New("user does not exist")
	ErrInternal   = errors.New("something went wrong")

	ErrInvalidCredentials  = errors.New("invalid user credentials")
	ErrInvalidOldPassword  = errors.New("invalid old password")
	ErrMissingAccessToken  = errors.New("missing token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrMissingRefreshToken = errors.New("missing refresh token")
	ErrExpiredRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUsedRefreshToken    = errors.New("refresh token expired or already used")
)
