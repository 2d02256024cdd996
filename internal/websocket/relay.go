package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"signal-relay/internal/models"

	"github.com/pkg/errors"
)

// MessageStore is the durable side of the relay.
type MessageStore interface {
	CreateMessage(ctx context.Context, chatID, senderID uint, content, msgType string, ttl int) (*models.Message, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

// ParticipantSource is optionally implemented by a MessageStore; notify_ring
// without an explicit participant list rings the chat's members.
type ParticipantSource interface {
	ChatParticipants(ctx context.Context, chatID uint) ([]uint, error)
}

// PresenceTracker is told when a user gets their first connection and loses
// their last one.
type PresenceTracker interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// Relay is the real-time core: it owns rooms and sessions and turns inbound
// events into deliveries through the Transport.
type Relay struct {
	transport Transport
	rooms     *RoomManager
	sessions  *SessionRegistry
	store     MessageStore
	presence  PresenceTracker
	metrics   *ConnectionMetrics

	storeTimeout time.Duration

	// presenceLocks serialize presence writes per user (striped by id).
	presenceLocks [presenceStripes]sync.Mutex
}

const presenceStripes = 64

type RelayOption func(*Relay)

func WithPresence(p PresenceTracker) RelayOption {
	return func(r *Relay) { r.presence = p }
}

func WithMetrics(m *ConnectionMetrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithStoreTimeout(d time.Duration) RelayOption {
	return func(r *Relay) { r.storeTimeout = d }
}

func NewRelay(transport Transport, store MessageStore, opts ...RelayOption) *Relay {
	rooms := NewRoomManager(transport)
	r := &Relay{
		transport:    transport,
		rooms:        rooms,
		sessions:     NewSessionRegistry(rooms),
		store:        store,
		metrics:      NewConnectionMetrics(),
		storeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Rooms() *RoomManager {
	return r.rooms
}

func (r *Relay) Sessions() *SessionRegistry {
	return r.sessions
}

// Stats returns the relay counters together with current gauges.
func (r *Relay) Stats(activeConnections int) MetricsSnapshot {
	s := r.metrics.snapshot()
	s.ActiveConnections = activeConnections
	s.OnlineUsers = r.sessions.OnlineUsers()
	s.Rooms = r.rooms.RoomCount()
	return s
}

// Connect registers a fresh connection. A non-zero userID (from an
// authenticated handshake) binds it right away. The client is told its
// connection id with a connected event.
func (r *Relay) Connect(connID string, userID uint) error {
	r.metrics.connectsTotal.Add(1)

	var bindErr error
	if userID != 0 {
		bindErr = r.bind(connID, userID)
		if bindErr != nil {
			userID = 0
		}
	}

	if err := r.transport.Send(connID, EventConnected, ConnectedData{SocketID: connID, UserID: userID}); err != nil {
		slog.Debug("Failed to send connected event", "connID", connID, "error", err)
	}
	return bindErr
}

// Disconnect removes every trace of the connection. Call rooms it was in are
// told the user left so peers can drop the media link.
func (r *Relay) Disconnect(connID string) {
	userID, _ := r.sessions.UserFor(connID)

	left := r.rooms.LeaveAll(connID)
	for _, room := range left {
		if room.Kind != RoomKindCall {
			continue
		}
		r.broadcast(room, EventUserLeftCall, CallPresenceData{
			UserID:       userID,
			SocketID:     connID,
			ConnectionID: connID,
		}, connID)
	}

	if uid, last := r.sessions.Unbind(connID); last {
		r.syncPresence(uid)
	}

	r.metrics.disconnectsTotal.Add(1)
	slog.Info("Connection cleaned up", "connID", connID, "userID", userID, "rooms", len(left))
}

// JoinRoom puts the connection into room and, for a non-zero userID, binds
// it to that user. User and call rooms cannot be joined this way.
func (r *Relay) JoinRoom(connID string, room Room, userID uint) error {
	if room.Kind == RoomKindUser || room.Kind == RoomKindCall {
		return protocolViolation(EventJoinRoom, errors.Wrapf(ErrReservedRoom, "room %s", room.Key()))
	}
	if userID != 0 {
		if err := r.bind(connID, userID); err != nil {
			return protocolViolation(EventJoinRoom, err)
		}
	}
	r.rooms.Join(room, connID)
	return nil
}

func (r *Relay) bind(connID string, userID uint) error {
	first, err := r.sessions.Bind(connID, userID)
	if err != nil {
		return err
	}
	if first {
		r.syncPresence(userID)
	}
	return nil
}

// syncPresence writes the user's current online state. The state is read
// under the user's presence lock, so the last write always matches the
// registry even when a reconnect races the old connection's cleanup.
func (r *Relay) syncPresence(userID uint) {
	if r.presence == nil || userID == 0 {
		return
	}
	mu := &r.presenceLocks[userID%presenceStripes]
	mu.Lock()
	defer mu.Unlock()

	online := len(r.sessions.ConnectionsFor(userID)) > 0
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id := strconv.FormatUint(uint64(userID), 10)
	var err error
	if online {
		err = r.presence.SetUserOnline(ctx, id)
	} else {
		err = r.presence.SetUserOffline(ctx, id)
	}
	if err != nil {
		slog.Warn("Failed to update presence", "userID", userID, "online", online, "error", err)
	}
}

// resolveUser picks the acting user for an event. A bound connection always
// acts as its user; an anonymous one must name the user explicitly.
func (r *Relay) resolveUser(connID string, claimed uint, event EventType) (uint, error) {
	if bound, ok := r.sessions.UserFor(connID); ok {
		if claimed != 0 && claimed != bound {
			return 0, protocolViolation(event, errors.Wrapf(ErrSenderMismatch, "claimed %d, bound %d", claimed, bound))
		}
		return bound, nil
	}
	if claimed == 0 {
		return 0, protocolViolation(event, ErrInvalidUser)
	}
	return claimed, nil
}

func (r *Relay) broadcast(room Room, event EventType, payload interface{}, exclude string) PublishResult {
	start := time.Now()
	res := r.rooms.Broadcast(room, event, payload, exclude)
	r.metrics.RecordBroadcast(room, res, time.Since(start))
	return res
}

// HandleFrame dispatches one inbound frame and reports a rejected event back
// to its sender.
func (r *Relay) HandleFrame(ctx context.Context, connID string, frame []byte) {
	err := r.Dispatch(ctx, connID, frame)
	if err == nil {
		return
	}

	r.metrics.eventsRejected.Add(1)
	if IsPersistenceFailure(err) {
		slog.Error("Event failed", "connID", connID, "error", err)
	} else {
		slog.Debug("Event rejected", "connID", connID, "error", err)
	}
	if sendErr := r.transport.Send(connID, EventError, errorData(err)); sendErr != nil {
		slog.Debug("Failed to send error event", "connID", connID, "error", sendErr)
	}
}

// Dispatch decodes one envelope and runs the matching operation. Returned
// errors are for the sender only; the connection stays open.
func (r *Relay) Dispatch(ctx context.Context, connID string, frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return protocolViolation("", errors.Wrap(err, "malformed envelope"))
	}
	r.metrics.eventsReceived.Add(1)

	if !env.Event.IsInbound() {
		return protocolViolation(env.Event, errors.Wrapf(ErrUnknownEvent, "%q", env.Event))
	}
	if env.Event.IsSignal() {
		var payload map[string]json.RawMessage
		if err := decode(env, &payload); err != nil {
			return err
		}
		return r.RelaySignal(connID, env.Event, payload)
	}

	switch env.Event {
	case EventJoinRoom:
		var data JoinRoomData
		if err := decode(env, &data); err != nil {
			return err
		}
		room, err := roomFromJSON(data.Room)
		if err != nil {
			return protocolViolation(env.Event, err)
		}
		return r.JoinRoom(connID, room, uint(data.UserID))

	case EventSendMessage:
		var data SendMessageData
		if err := decode(env, &data); err != nil {
			return err
		}
		_, err := r.SendMessage(ctx, connID, data)
		return err

	case EventJoinCall, EventLeaveCall:
		var data CallData
		if err := decode(env, &data); err != nil {
			return err
		}
		if env.Event == EventJoinCall {
			return r.JoinCall(connID, uint(data.ChatID), uint(data.UserID))
		}
		return r.LeaveCall(connID, uint(data.ChatID), uint(data.UserID))

	case EventNotifyRing:
		var data NotifyRingData
		if err := decode(env, &data); err != nil {
			return err
		}
		_, err := r.NotifyRing(ctx, connID, data)
		return err

	default:
		return protocolViolation(env.Event, errors.Wrapf(ErrUnknownEvent, "%q", env.Event))
	}
}

func decode(env Envelope, v interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return protocolViolationf(env.Event, "missing data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return protocolViolation(env.Event, errors.Wrap(err, "invalid data"))
	}
	return nil
}

// roomFromJSON accepts a number (chat id) or a room name string.
func roomFromJSON(raw json.RawMessage) (Room, error) {
	if len(raw) == 0 {
		return Room{}, errors.New("room is required")
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return ParseRoom(name)
	}
	var id ID
	if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
		return Room{}, errors.Errorf("invalid room %s", raw)
	}
	return ChatRoom(uint(id)), nil
}
