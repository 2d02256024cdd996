package websocket

import (
	"context"
	"log/slog"
	"time"

	"signal-relay/internal/models"
)

// SendMessage persists the message and only then broadcasts receive_message
// to the whole chat room, sender included. A store failure broadcasts
// nothing.
func (r *Relay) SendMessage(ctx context.Context, connID string, data SendMessageData) (*models.Message, error) {
	chatID := uint(data.ChatID)
	if chatID == 0 {
		return nil, protocolViolationf(EventSendMessage, "chatId is required")
	}
	if data.Content == "" {
		return nil, protocolViolationf(EventSendMessage, "content is required")
	}
	if data.TTL < 0 {
		return nil, protocolViolationf(EventSendMessage, "ttl must not be negative")
	}
	senderID, err := r.resolveUser(connID, uint(data.SenderID), EventSendMessage)
	if err != nil {
		return nil, err
	}
	msgType := data.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	msg, err := r.store.CreateMessage(storeCtx, chatID, senderID, data.Content, msgType, data.TTL)
	cancel()
	if err != nil {
		return nil, persistenceFailure(EventSendMessage, err)
	}

	room := ChatRoom(chatID)
	res := r.broadcast(room, EventReceiveMessage, receiveMessageData(msg), "")
	r.metrics.messagesRelayed.Add(1)

	slog.Debug("Message relayed", "connID", connID, "messageID", msg.ID, "room", room.Key(), "delivered", res.Delivered)
	return msg, nil
}

func receiveMessageData(msg *models.Message) ReceiveMessageData {
	return ReceiveMessageData{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      msg.Type,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
		ChatID:    msg.ChatID,
		TTL:       msg.TTL,
	}
}
