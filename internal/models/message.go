package models

import (
	"time"
)

// MessageType values used by clients. Anything else is stored as sent.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeFile  = "file"
)

/** --------------------ENTITIES-------------------- */
// Message is a persisted chat message. Content is opaque (possibly end-to-end
// encrypted) and never inspected. TTL is stored and returned but not enforced.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chatId"`
	SenderID  uint      `gorm:"not null" json:"senderId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Type      string    `gorm:"size:20;default:text" json:"type"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	TTL       int       `gorm:"default:0" json:"ttl"`
}
