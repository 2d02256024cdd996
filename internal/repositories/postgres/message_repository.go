package postgres

import (
	"context"
	"errors"
	"fmt"

	"signal-relay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// timestamp is a SQL keyword, so let gorm quote it.
var timestampColumn = clause.Column{Name: "timestamp"}

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindByChatID returns the chat history oldest first.
func (r *MessageRepository) FindByChatID(ctx context.Context, chatID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order(clause.OrderByColumn{Column: timestampColumn}).
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// LastByChatID returns the newest message of a chat, or nil when there is none.
func (r *MessageRepository) LastByChatID(ctx context.Context, chatID uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order(clause.OrderByColumn{Column: timestampColumn, Desc: true}).
		Order("id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load last message: %w", err)
	}
	return &msg, nil
}
