package models

import (
	"time"

	"gorm.io/gorm"
)

const DefaultAvatar = "https://api.dicebear.com/7.x/avataaars/svg?seed=Felix"

/** --------------------ENTITIES-------------------- */
// User represents the user entity. Phone is the login identity.
type User struct {
	gorm.Model
	Username string `gorm:"not null" json:"username"`
	Phone    string `gorm:"uniqueIndex;not null" json:"phone"`
	Password string `gorm:"not null" json:"-"`
	// PublicKey is stored and handed out opaquely, never validated.
	PublicKey string `gorm:"type:text" json:"publicKey,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=1,max=80"`
	Phone     string `json:"phone" binding:"required,max=20"`
	Password  string `json:"password" binding:"required,min=6"`
	PublicKey string `json:"publicKey"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SearchUserRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type UpdateKeyRequest struct {
	PublicKey string `json:"publicKey" binding:"required"`
}

// Response
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Phone     string    `json:"phone,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	PublicKey string    `json:"publicKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		PublicKey: u.PublicKey,
		CreatedAt: u.CreatedAt,
	}
}
