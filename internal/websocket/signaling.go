package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
)

// signalField is the member each negotiation step must carry.
var signalField = map[EventType]string{
	EventOffer:        "offer",
	EventAnswer:       "answer",
	EventIceCandidate: "candidate",
}

// JoinCall adds the connection to the chat's call room and announces it to
// the members already there, who then start offers towards it.
func (r *Relay) JoinCall(connID string, chatID, userID uint) error {
	if chatID == 0 {
		return protocolViolationf(EventJoinCall, "chatId is required")
	}
	userID, err := r.resolveUser(connID, userID, EventJoinCall)
	if err != nil {
		return err
	}

	room := CallRoom(chatID)
	r.rooms.Join(room, connID)
	r.broadcast(room, EventUserJoinedCall, CallPresenceData{
		UserID:       userID,
		SocketID:     connID,
		ConnectionID: connID,
	}, connID)

	slog.Info("Joined call", "connID", connID, "userID", userID, "room", room.Key())
	return nil
}

// LeaveCall removes the connection from the call room and tells the rest.
// Leaving a call the connection is not in is a no-op.
func (r *Relay) LeaveCall(connID string, chatID, userID uint) error {
	if chatID == 0 {
		return protocolViolationf(EventLeaveCall, "chatId is required")
	}
	userID, err := r.resolveUser(connID, userID, EventLeaveCall)
	if err != nil {
		return err
	}

	room := CallRoom(chatID)
	if !r.rooms.Leave(room, connID) {
		return nil
	}
	r.broadcast(room, EventUserLeftCall, CallPresenceData{
		UserID:       userID,
		SocketID:     connID,
		ConnectionID: connID,
	}, connID)

	slog.Info("Left call", "connID", connID, "userID", userID, "room", room.Key())
	return nil
}

// RelaySignal forwards an offer, answer or ICE candidate to the connection
// named in "to". The payload goes out as received plus fromSocket (the real
// sender connection). A bound sender's from is always its own user id; a
// different claimed id is rejected. An unknown target is dropped silently.
func (r *Relay) RelaySignal(connID string, kind EventType, payload map[string]json.RawMessage) error {
	field, ok := signalField[kind]
	if !ok {
		return protocolViolation(kind, ErrUnknownEvent)
	}

	var to string
	if err := json.Unmarshal(payload["to"], &to); err != nil || to == "" {
		return protocolViolationf(kind, "to must be a connection id")
	}
	if body, ok := payload[field]; !ok || string(body) == "null" {
		return protocolViolationf(kind, "%s is required", field)
	}

	if _, bound := r.sessions.UserFor(connID); bound {
		var claimed ID
		if raw, ok := payload["from"]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &claimed); err != nil {
				return protocolViolationf(kind, "from must be a user id")
			}
		}
		userID, err := r.resolveUser(connID, uint(claimed), kind)
		if err != nil {
			return err
		}
		payload["from"], _ = json.Marshal(userID)
	}
	payload["fromSocket"], _ = json.Marshal(connID)

	if err := r.transport.Send(to, kind, payload); err != nil {
		r.metrics.signalsDropped.Add(1)
		if errors.Is(err, ErrTargetUnavailable) {
			slog.Debug("Signal target unavailable", "connID", connID, "to", to, "event", kind)
		} else {
			slog.Warn("Signal delivery failed", "connID", connID, "to", to, "event", kind, "error", err)
		}
		return nil
	}
	r.metrics.signalsRelayed.Add(1)
	return nil
}

// NotifyRing delivers incoming_call to every participant's notify room except
// the caller. Offline participants are not queued. It returns the number of
// connections reached.
func (r *Relay) NotifyRing(ctx context.Context, connID string, data NotifyRingData) (int, error) {
	chatID := uint(data.ChatID)
	if chatID == 0 {
		return 0, protocolViolationf(EventNotifyRing, "chatId is required")
	}
	callerID, err := r.resolveUser(connID, uint(data.CallerID), EventNotifyRing)
	if err != nil {
		return 0, err
	}

	participants := make([]uint, 0, len(data.Participants))
	for _, p := range data.Participants {
		participants = append(participants, uint(p))
	}
	if len(participants) == 0 {
		participants = r.chatParticipants(ctx, chatID)
	}

	callerName := data.CallerName
	if callerName == "" {
		callerName = r.userName(ctx, callerID)
	}

	ring := IncomingCallData{ChatID: chatID, CallerName: callerName, CallerID: callerID}
	seen := make(map[uint]struct{}, len(participants))
	reached := 0
	for _, uid := range participants {
		if uid == 0 || uid == callerID {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		reached += r.broadcast(UserRoom(uid), EventIncomingCall, ring, "").Delivered
	}

	slog.Info("Ring sent", "chatID", chatID, "callerID", callerID, "participants", len(seen), "connections", reached)
	return reached, nil
}

func (r *Relay) chatParticipants(ctx context.Context, chatID uint) []uint {
	src, ok := r.store.(ParticipantSource)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	ids, err := src.ChatParticipants(ctx, chatID)
	if err != nil {
		slog.Warn("Failed to load chat participants", "chatID", chatID, "error", err)
		return nil
	}
	return ids
}

func (r *Relay) userName(ctx context.Context, userID uint) string {
	if r.store == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		slog.Debug("Caller name lookup failed", "userID", userID, "error", err)
		return ""
	}
	return user.Username
}
