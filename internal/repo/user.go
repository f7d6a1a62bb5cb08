package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamvault/auth-service/internal/models"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrStaleRefreshToken = errors.New("stale refresh token")
)

func (r *GormRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) Create(ctx context.Context, u *models.User) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", u.Username, u.Email).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExists
	}
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) UpdateAccount(ctx context.Context, id uuid.UUID, fullname, email string) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"full_name": fullname, "email": email}).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *GormRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (r *GormRepo) UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("avatar", url).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *GormRepo) UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("cover_image", url).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// SetRefreshToken overwrites the stored refresh credential. Whatever was
// there before stops being the live token the moment this commits.
func (r *GormRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", token).Error
}

// RotateRefreshToken swaps old for new with a compare-and-swap on the
// stored value. If two renewals race on the same old token, the row
// matches only for the first; the loser gets ErrStaleRefreshToken.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldToken, newToken string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", id, oldToken).
		Update("refresh_token", newToken)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRefreshToken
	}
	return nil
}

// ClearRefreshToken is idempotent: clearing an already empty field is not
// an error.
func (r *GormRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", "").Error
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
