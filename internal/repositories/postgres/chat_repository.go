package postgres

import (
	"context"
	"errors"
	"fmt"

	"signal-relay/internal/models"

	"gorm.io/gorm"
)

var ErrChatNotFound = errors.New("chat not found")

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create stores the chat and one participant row per user id. No attempt is
// made to reuse an existing 1:1 chat for the same pair.
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat, participantIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(chat).Error; err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}

		participants := make([]models.ChatParticipant, 0, len(participantIDs))
		for _, uid := range participantIDs {
			participants = append(participants, models.ChatParticipant{ChatID: chat.ID, UserID: uid})
		}
		if len(participants) > 0 {
			if err := tx.Omit("User").Create(&participants).Error; err != nil {
				return fmt.Errorf("failed to add participants: %w", err)
			}
		}
		chat.Participants = participants
		return nil
	})
}

// FindByUserID returns every chat the user participates in with participants
// and their users preloaded.
func (r *ChatRepository) FindByUserID(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.ChatParticipant{}).Select("chat_id").Where("user_id = ?", userID)).
		Preload("Participants.User").
		Order("id").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) FindByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).Preload("Participants.User").First(&chat, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// ParticipantIDs lists the user ids of a chat.
func (r *ChatRepository) ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Order("id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return ids, nil
}
