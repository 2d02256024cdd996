package websocket

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// SessionRegistry maps users to their live connections. A user may hold many
// connections; a connection belongs to at most one user.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uint]map[string]struct{}
	owners   map[string]uint

	rooms *RoomManager
}

func NewSessionRegistry(rooms *RoomManager) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[uint]map[string]struct{}),
		owners:   make(map[string]uint),
		rooms:    rooms,
	}
}

// Bind attaches connID to userID and joins the user's notify room. Binding
// the same pair twice is a no-op. first reports whether this is the user's
// first live connection.
func (s *SessionRegistry) Bind(connID string, userID uint) (first bool, err error) {
	if userID == 0 {
		return false, ErrInvalidUser
	}

	s.mu.Lock()
	if owner, ok := s.owners[connID]; ok {
		s.mu.Unlock()
		if owner != userID {
			return false, errors.Wrapf(ErrRebindConflict, "connection %s is bound to user %d", connID, owner)
		}
		return false, nil
	}
	conns, ok := s.sessions[userID]
	if !ok {
		conns = make(map[string]struct{})
		s.sessions[userID] = conns
	}
	conns[connID] = struct{}{}
	s.owners[connID] = userID
	first = len(conns) == 1
	s.mu.Unlock()

	s.rooms.Join(UserRoom(userID), connID)
	slog.Debug("Session bound", "connID", connID, "userID", userID, "first", first)
	return first, nil
}

// Unbind drops connID from its user's session. last reports whether the user
// has no live connection left. Unbound connections are ignored.
func (s *SessionRegistry) Unbind(connID string) (userID uint, last bool) {
	s.mu.Lock()
	userID, ok := s.owners[connID]
	if !ok {
		s.mu.Unlock()
		return 0, false
	}
	delete(s.owners, connID)
	conns := s.sessions[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.sessions, userID)
		last = true
	}
	s.mu.Unlock()

	s.rooms.Leave(UserRoom(userID), connID)
	slog.Debug("Session unbound", "connID", connID, "userID", userID, "last", last)
	return userID, last
}

// ConnectionsFor returns a sorted snapshot of the user's connection ids.
func (s *SessionRegistry) ConnectionsFor(userID uint) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.sessions[userID]
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

// UserFor returns the user bound to connID.
func (s *SessionRegistry) UserFor(connID string) (uint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.owners[connID]
	return userID, ok
}

// OnlineUsers returns the number of users with at least one connection.
func (s *SessionRegistry) OnlineUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// OnlineUserIDs returns the sorted ids of users with a live connection.
func (s *SessionRegistry) OnlineUserIDs() []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]uint, 0, len(s.sessions))
	for userID := range s.sessions {
		out = append(out, userID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
