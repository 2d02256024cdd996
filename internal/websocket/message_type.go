package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// EventType names an event on the wire.
type EventType string

// Inbound events
const (
	EventJoinRoom     EventType = "join_room"
	EventSendMessage  EventType = "send_message"
	EventJoinCall     EventType = "join_call"
	EventLeaveCall    EventType = "leave_call"
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventIceCandidate EventType = "ice_candidate"
	EventNotifyRing   EventType = "notify_ring"
)

// Outbound events
const (
	EventConnected      EventType = "connected"
	EventReceiveMessage EventType = "receive_message"
	EventUserJoinedCall EventType = "user_joined_call"
	EventUserLeftCall   EventType = "user_left_call"
	EventIncomingCall   EventType = "incoming_call"
	EventError          EventType = "error"
)

func (e EventType) String() string {
	return string(e)
}

// IsInbound reports whether clients may send this event.
func (e EventType) IsInbound() bool {
	switch e {
	case EventJoinRoom, EventSendMessage, EventJoinCall, EventLeaveCall,
		EventOffer, EventAnswer, EventIceCandidate, EventNotifyRing:
		return true
	default:
		return false
	}
}

// IsSignal reports whether the event is a unicast WebRTC negotiation step.
func (e EventType) IsSignal() bool {
	return e == EventOffer || e == EventAnswer || e == EventIceCandidate
}

// Envelope is one websocket text frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ID is a numeric identifier that also accepts its quoted form ("7").
type ID uint

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 1 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.ParseUint(string(b), 10, 0)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ID(n)
	return nil
}

/** -------------------- Inbound payloads -------------------- */

type JoinRoomData struct {
	// Room is either a number (chat id) or a string room name.
	Room   json.RawMessage `json:"room"`
	UserID ID              `json:"userId,omitempty"`
}

type SendMessageData struct {
	ChatID   ID     `json:"chatId"`
	SenderID ID     `json:"senderId"`
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	TTL      int    `json:"ttl,omitempty"`
}

type CallData struct {
	ChatID ID `json:"chatId"`
	UserID ID `json:"userId"`
}

type NotifyRingData struct {
	ChatID       ID     `json:"chatId"`
	CallerName   string `json:"callerName"`
	CallerID     ID     `json:"callerId"`
	Participants []ID   `json:"participants"`
}

/** -------------------- Outbound payloads -------------------- */

type ConnectedData struct {
	SocketID string `json:"socketId"`
	UserID   uint   `json:"userId,omitempty"`
}

type ReceiveMessageData struct {
	ID        uint   `json:"id"`
	SenderID  uint   `json:"senderId"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	ChatID    uint   `json:"chatId"`
	TTL       int    `json:"ttl"`
}

// CallPresenceData carries the connection id twice: socketId for existing
// clients and connectionId as the canonical name.
type CallPresenceData struct {
	UserID       uint   `json:"userId"`
	SocketID     string `json:"socketId"`
	ConnectionID string `json:"connectionId"`
}

type IncomingCallData struct {
	ChatID     uint   `json:"chatId"`
	CallerName string `json:"callerName"`
	CallerID   uint   `json:"callerId"`
}

type ErrorData struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Event   EventType `json:"event,omitempty"`
}
