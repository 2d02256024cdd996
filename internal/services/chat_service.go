package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"signal-relay/internal/models"
	"signal-relay/internal/repositories/postgres"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("user is not a participant of this chat")
)

// MessagePublisher receives every persisted message, e.g. to feed an
// external event stream. Publishing failures never fail the write.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg *models.Message) error
}

type ChatService struct {
	chatRepo    *postgres.ChatRepository
	messageRepo *postgres.MessageRepository
	userRepo    *postgres.UserRepository
	publisher   MessagePublisher
}

func NewChatService(
	chatRepo *postgres.ChatRepository,
	messageRepo *postgres.MessageRepository,
	userRepo *postgres.UserRepository,
	publisher MessagePublisher,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

// CreateMessage persists a message. It is the durable store the websocket
// relay writes through before broadcasting.
func (s *ChatService) CreateMessage(ctx context.Context, chatID, senderID uint, content, msgType string, ttl int) (*models.Message, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	msg := &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
		Type:     msgType,
		TTL:      ttl,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMessage(ctx, msg); err != nil {
			slog.Warn("Failed to publish message event", "messageID", msg.ID, "chatID", chatID, "error", err)
		}
	}
	return msg, nil
}

func (s *ChatService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateChat always creates a new chat, even when a 1:1 chat between the same
// two users already exists.
func (s *ChatService) CreateChat(ctx context.Context, req *models.CreateChatRequest) (*models.CreateChatResponse, error) {
	if len(req.Participants) == 0 {
		return nil, ErrInvalidRequest
	}

	participants := make([]uint, 0, len(req.Participants))
	for _, id := range req.Participants {
		if !slices.Contains(participants, id) {
			participants = append(participants, id)
		}
	}

	chat := &models.Chat{IsGroup: req.IsGroup, Name: req.Name}
	if err := s.chatRepo.Create(ctx, chat, participants); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return &models.CreateChatResponse{ID: chat.ID}, nil
}

// ListChats builds the chat list of a user. 1:1 chats take the other
// participant's name and avatar; the preview hides text content.
func (s *ChatService) ListChats(ctx context.Context, userID uint) ([]models.ChatResponse, error) {
	chats, err := s.chatRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]models.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		resp := models.ChatResponse{
			ID:           chat.ID,
			IsGroup:      chat.IsGroup,
			Name:         chat.Name,
			Participants: make([]models.ParticipantResponse, 0, len(chat.Participants)),
		}
		for _, p := range chat.Participants {
			resp.Participants = append(resp.Participants, models.ParticipantResponse{
				ID:        p.User.ID,
				Username:  p.User.Username,
				Phone:     p.User.Phone,
				Avatar:    p.User.Avatar,
				PublicKey: p.User.PublicKey,
			})
		}

		if !chat.IsGroup && len(resp.Participants) == 2 {
			for _, p := range resp.Participants {
				if p.ID != userID {
					name, avatar := p.Username, p.Avatar
					resp.Name = &name
					resp.Avatar = &avatar
					break
				}
			}
		}

		last, err := s.messageRepo.LastByChatID(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		resp.LastMessage = previewOf(last)
		result = append(result, resp)
	}
	return result, nil
}

func previewOf(last *models.Message) models.LastMessagePreview {
	if last == nil {
		return models.LastMessagePreview{Content: "No messages", Type: models.MessageTypeText}
	}
	content := last.Type
	if last.Type == models.MessageTypeText {
		content = "Encrypted"
	}
	ts := last.Timestamp.UTC().Truncate(time.Millisecond)
	return models.LastMessagePreview{Content: content, Timestamp: &ts, Type: last.Type}
}

// ListMessages returns a chat history to one of its participants.
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID uint) ([]models.Message, error) {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, postgres.ErrChatNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	member := slices.ContainsFunc(chat.Participants, func(p models.ChatParticipant) bool {
		return p.UserID == userID
	})
	if !member {
		return nil, ErrNotParticipant
	}
	return s.messageRepo.FindByChatID(ctx, chatID)
}

// ChatParticipants lists the user ids of a chat.
func (s *ChatService) ChatParticipants(ctx context.Context, chatID uint) ([]uint, error) {
	return s.chatRepo.ParticipantIDs(ctx, chatID)
}
