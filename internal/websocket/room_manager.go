package websocket

import (
	"log/slog"
	"sort"
	"sync"
)

// Transport delivers one event to one live connection.
type Transport interface {
	Send(connID string, event EventType, payload interface{}) error
}

// FrameTransport is a Transport that can take an already encoded frame, so
// a broadcast is encoded once instead of once per member.
type FrameTransport interface {
	Transport
	EncodeFrame(event EventType, payload interface{}) ([]byte, error)
	SendFrame(connID string, event EventType, frame []byte) error
}

// PublishResult summarizes one broadcast.
type PublishResult struct {
	Delivered int
	Failed    int
}

// RoomManager tracks room membership. The reverse index lets LeaveAll touch
// only the rooms a connection actually joined.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[Room]map[string]struct{}
	joined map[string]map[Room]struct{}

	transport Transport
}

func NewRoomManager(transport Transport) *RoomManager {
	return &RoomManager{
		rooms:     make(map[Room]map[string]struct{}),
		joined:    make(map[string]map[Room]struct{}),
		transport: transport,
	}
}

// Join adds connID to room, creating the room if needed. It reports whether
// the connection was newly added.
func (m *RoomManager) Join(room Room, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		m.rooms[room] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}

	idx, ok := m.joined[connID]
	if !ok {
		idx = make(map[Room]struct{})
		m.joined[connID] = idx
	}
	idx[room] = struct{}{}

	slog.Debug("Joined room", "connID", connID, "room", room.Key())
	return true
}

// Leave removes connID from room. Empty rooms are dropped.
func (m *RoomManager) Leave(room Room, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(room, connID)
}

func (m *RoomManager) leaveLocked(room Room, connID string) bool {
	members, ok := m.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[connID]; !exists {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, room)
	}

	if idx, ok := m.joined[connID]; ok {
		delete(idx, room)
		if len(idx) == 0 {
			delete(m.joined, connID)
		}
	}

	slog.Debug("Left room", "connID", connID, "room", room.Key())
	return true
}

// LeaveAll removes connID from every room it joined and returns those rooms.
func (m *RoomManager) LeaveAll(connID string) []Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.joined[connID]
	if !ok {
		return nil
	}
	left := make([]Room, 0, len(idx))
	for room := range idx {
		left = append(left, room)
	}
	for _, room := range left {
		m.leaveLocked(room, connID)
	}
	return left
}

// Members returns a sorted snapshot of the connections in room.
func (m *RoomManager) Members(room Room) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[room]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether connID is currently in room.
func (m *RoomManager) Contains(room Room, connID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[room][connID]
	return ok
}

// Size returns the member count of room; zero for unknown rooms.
func (m *RoomManager) Size(room Room) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// RoomCount returns the number of non-empty rooms.
func (m *RoomManager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// RoomsOf returns the rooms connID is in.
func (m *RoomManager) RoomsOf(connID string) []Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.joined[connID]
	out := make([]Room, 0, len(idx))
	for room := range idx {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Broadcast sends event to every member of room except exclude (may be
// empty). Members are snapshotted first; sends happen without the lock and a
// failing member does not stop the others.
func (m *RoomManager) Broadcast(room Room, event EventType, payload interface{}, exclude string) PublishResult {
	targets := m.snapshot(room, exclude)
	if len(targets) == 0 {
		return PublishResult{}
	}

	send := func(connID string) error {
		return m.transport.Send(connID, event, payload)
	}
	if ft, ok := m.transport.(FrameTransport); ok {
		frame, err := ft.EncodeFrame(event, payload)
		if err != nil {
			slog.Error("Broadcast encode failed", "room", room.Key(), "event", event, "error", err)
			return PublishResult{Failed: len(targets)}
		}
		send = func(connID string) error {
			return ft.SendFrame(connID, event, frame)
		}
	}

	var res PublishResult
	for _, connID := range targets {
		if err := send(connID); err != nil {
			res.Failed++
			slog.Warn("Broadcast delivery failed", "connID", connID, "room", room.Key(), "event", event, "error", err)
			continue
		}
		res.Delivered++
	}
	return res
}

func (m *RoomManager) snapshot(room Room, exclude string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[room]
	out := make([]string, 0, len(members))
	for connID := range members {
		if connID != exclude {
			out = append(out, connID)
		}
	}
	return out
}
