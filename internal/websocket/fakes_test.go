package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"signal-relay/internal/models"

	"github.com/stretchr/testify/require"
)

type delivery struct {
	ConnID  string
	Event   EventType
	Payload interface{}
}

// recordingTransport stands in for the hub: it knows which connections are
// live and records every send in order.
type recordingTransport struct {
	mu      sync.Mutex
	live    map[string]bool
	failFor map[string]error
	sent    []delivery
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		live:    make(map[string]bool),
		failFor: make(map[string]error),
	}
}

func (t *recordingTransport) Send(connID string, event EventType, payload interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failFor[connID]; err != nil {
		return err
	}
	if !t.live[connID] {
		return ErrTargetUnavailable
	}
	t.sent = append(t.sent, delivery{ConnID: connID, Event: event, Payload: payload})
	return nil
}

func (t *recordingTransport) open(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[connID] = true
}

func (t *recordingTransport) drop(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, connID)
}

func (t *recordingTransport) fail(connID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor[connID] = err
}

func (t *recordingTransport) to(connID string) []delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []delivery
	for _, d := range t.sent {
		if d.ConnID == connID {
			out = append(out, d)
		}
	}
	return out
}

func (t *recordingTransport) eventsTo(connID string, event EventType) []delivery {
	var out []delivery
	for _, d := range t.to(connID) {
		if d.Event == event {
			out = append(out, d)
		}
	}
	return out
}

func (t *recordingTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

// fakeStore persists messages in memory.
type fakeStore struct {
	mu           sync.Mutex
	messages     []models.Message
	users        map[uint]*models.User
	participants map[uint][]uint
	err          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[uint]*models.User),
		participants: make(map[uint][]uint),
	}
}

func (s *fakeStore) CreateMessage(_ context.Context, chatID, senderID uint, content, msgType string, ttl int) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	msg := models.Message{
		ID:        uint(len(s.messages) + 1),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		TTL:       ttl,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *fakeStore) GetUser(_ context.Context, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (s *fakeStore) ChatParticipants(_ context.Context, chatID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants[chatID], nil
}

func (s *fakeStore) stored() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

type presenceCall struct {
	UserID string
	Online bool
}

type fakePresence struct {
	mu    sync.Mutex
	calls []presenceCall
}

func (p *fakePresence) SetUserOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, presenceCall{UserID: userID, Online: true})
	return nil
}

func (p *fakePresence) SetUserOffline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, presenceCall{UserID: userID, Online: false})
	return nil
}

func (p *fakePresence) history() []presenceCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]presenceCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// isOnline reports the last state written for userID.
func (p *fakePresence) isOnline(userID string) bool {
	online := false
	for _, c := range p.history() {
		if c.UserID == userID {
			online = c.Online
		}
	}
	return online
}

// slowPresence stalls offline writes so a reconnect can overlap them.
type slowPresence struct {
	fakePresence
	delay          time.Duration
	offlineStarted chan struct{}
}

func newSlowPresence(delay time.Duration) *slowPresence {
	return &slowPresence{delay: delay, offlineStarted: make(chan struct{}, 1)}
}

func (p *slowPresence) SetUserOffline(ctx context.Context, userID string) error {
	select {
	case p.offlineStarted <- struct{}{}:
	default:
	}
	time.Sleep(p.delay)
	return p.fakePresence.SetUserOffline(ctx, userID)
}

// frame builds an inbound envelope.
func frame(t *testing.T, event EventType, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	require.NoError(t, err)
	return raw
}
