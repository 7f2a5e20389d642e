package models

import (
	"time"

	"gorm.io/gorm"
)

// ProfileInfo groups the optional profile fields a user can fill in.
type ProfileInfo struct {
	FirstName string `gorm:"size:50" json:"first_name"`
	LastName  string `gorm:"size:50" json:"last_name"`
	Bio       string `gorm:"size:500" json:"bio"`
}

// User represents an account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Username     string      `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email        string      `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash string      `gorm:"size:255" json:"-"`
	ProfileInfo `gorm:"embedded;embeddedPrefix:profile_" json:"profile_info"`
	Provider     string      `gorm:"size:32" json:"provider,omitempty"`
	ProviderID   string      `gorm:"size:255" json:"-"`
	AvatarURL    string      `gorm:"size:512" json:"avatar_url,omitempty"`
	IsActive     bool        `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Posts        []Post      `json:"-"`
	Likes        []Like      `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// PublicUser is the projection of a user safe to embed in post and like listings.
type PublicUser struct {
	ID          uint        `json:"id"`
	Username    string      `json:"username"`
	ProfileInfo ProfileInfo `json:"profile_info"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
}

// Public strips credentials and provider identifiers from a user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		ProfileInfo: u.ProfileInfo,
		AvatarURL:   u.AvatarURL,
	}
}
