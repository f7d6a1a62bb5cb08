package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/streamvault/auth-service/internal/events"
	pkghash "github.com/streamvault/auth-service/internal/hash"
	"github.com/streamvault/auth-service/internal/logging"
	"github.com/streamvault/auth-service/internal/media"
	"github.com/streamvault/auth-service/internal/models"
	"github.com/streamvault/auth-service/internal/repo"
)

type RegisterInput struct {
	FullName string
	Username string
	Email    string
	Password string

	Avatar     *media.File
	CoverImage *media.File
}

// Register validates the input, uploads the supplied assets and creates
// the user. Validation runs before any store write so a rejected request
// leaves no partial record behind.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if anyBlank(in.FullName, in.Username, in.Email, in.Password) {
		return nil, ErrValidation
	}
	if in.Avatar == nil {
		l.Warn("register_failed", "status", 400, "reason", "avatar file is required")
		return nil, ErrValidation
	}

	avatarURL, err := s.Uploader.Upload(ctx, *in.Avatar)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "avatar upload failed", "error", err)
		return nil, ErrInternal
	}

	// Cover image is optional; it counts as present only when the request
	// actually carried one.
	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.Uploader.Upload(ctx, *in.CoverImage)
		if err != nil {
			l.Error("register_failed", "status", 500, "reason", "cover image upload failed", "error", err)
			return nil, ErrInternal
		}
	}

	pwHash, err := pkghash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash password", "error", err)
		return nil, ErrInternal
	}

	user := models.User{
		FullName:     in.FullName,
		Username:     strings.ToLower(in.Username),
		Email:        in.Email,
		PasswordHash: pwHash,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
	}

	if err := s.Repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			l.Warn("register_failed", "status", 409, "reason", "user already exists", "username", user.Username)
			return nil, ErrConflict
		}
		l.Error("register_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	s.publish(ctx, events.TypeUserRegistered, &user)
	l.Info("register_successful", "username", user.Username)
	return user.Sanitized(), nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password")

	if anyBlank(oldPassword, newPassword) {
		return ErrValidation
	}

	user, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		l.Error("change_password_failed", "status", 500, "error", err)
		return ErrInternal
	}

	if !pkghash.CheckPassword(user.PasswordHash, oldPassword) {
		return ErrInvalidOldPassword
	}

	pwHash, err := pkghash.HashPassword(newPassword)
	if err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return ErrInternal
	}

	if err := s.Repo.UpdatePassword(ctx, userID, pwHash); err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return ErrInternal
	}

	l.Info("password_changed", "user_id", userID)
	return nil
}

func (s *AuthService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullname, email string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.update_account")

	if anyBlank(fullname, email) {
		return nil, ErrValidation
	}

	user, err := s.Repo.UpdateAccount(ctx, userID, fullname, email)
	if err != nil {
		l.Error("update_account_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	return user.Sanitized(), nil
}

func (s *AuthService) UpdateAvatar(ctx context.Context, userID uuid.UUID, file media.File) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.update_avatar")

	url, err := s.Uploader.Upload(ctx, file)
	if err != nil {
		l.Error("update_avatar_failed", "status", 500, "reason", "upload failed", "error", err)
		return nil, ErrInternal
	}

	user, err := s.Repo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		l.Error("update_avatar_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	return user.Sanitized(), nil
}

func (s *AuthService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, file media.File) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.update_cover_image")

	url, err := s.Uploader.Upload(ctx, file)
	if err != nil {
		l.Error("update_cover_image_failed", "status", 500, "reason", "upload failed", "error", err)
		return nil, ErrInternal
	}

	user, err := s.Repo.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		l.Error("update_cover_image_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	return user.Sanitized(), nil
}
