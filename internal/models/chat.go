package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Chat is a 1:1 or group conversation.
type Chat struct {
	gorm.Model
	IsGroup      bool    `gorm:"default:false" json:"isGroup"`
	Name         *string `json:"name,omitempty"`
	GroupAdminID *uint   `json:"groupAdminId,omitempty"`

	Participants []ChatParticipant `json:"participants,omitempty"`
}

// ChatParticipant links a user to a chat.
type ChatParticipant struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	ChatID uint `gorm:"not null;index" json:"chatId"`
	UserID uint `gorm:"not null;index" json:"userId"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

/** -------------------- DTOs -------------------- */
// Request
type CreateChatRequest struct {
	Participants []uint  `json:"participants" binding:"required,min=1"`
	IsGroup      bool    `json:"isGroup"`
	Name         *string `json:"name"`
}

// Response
type ParticipantResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
	Avatar    string `json:"avatar,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
}

type LastMessagePreview struct {
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp"`
	Type      string     `json:"type"`
}

type ChatResponse struct {
	ID           uint                  `json:"id"`
	IsGroup      bool                  `json:"isGroup"`
	Name         *string               `json:"name"`
	Avatar       *string               `json:"avatar"`
	Participants []ParticipantResponse `json:"participants"`
	LastMessage  LastMessagePreview    `json:"lastMessage"`
}

type CreateChatResponse struct {
	ID uint `json:"id"`
}
