package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the single durable record this service owns. RefreshToken holds
// the one currently live refresh credential for the user; empty means no
// active session.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	FullName     string    `gorm:"not null"                 json:"fullname"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Avatar       string    `gorm:"not null"                 json:"avatar"`
	CoverImage   string    `json:"cover_image"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Sanitized returns a copy safe to hand to transport code: no password
// hash, no refresh credential.
func (u User) Sanitized() *User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	return &u
}
