package websocket

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomKind separates the room namespaces so ids from different kinds never
// collide.
type RoomKind uint8

const (
	RoomKindChat RoomKind = iota + 1
	RoomKindUser
	RoomKindCall
	RoomKindNamed
)

func (k RoomKind) String() string {
	switch k {
	case RoomKindChat:
		return "chat"
	case RoomKindUser:
		return "user"
	case RoomKindCall:
		return "call"
	case RoomKindNamed:
		return "named"
	default:
		return "unknown"
	}
}

const (
	userRoomPrefix = "user_"
	callRoomPrefix = "call_"
	chatRoomPrefix = "chat_"
)

// Room identifies a broadcast group. It is comparable and used directly as a
// map key; Key derives the wire name.
type Room struct {
	Kind RoomKind
	ID   uint
	Name string
}

func ChatRoom(chatID uint) Room { return Room{Kind: RoomKindChat, ID: chatID} }
func UserRoom(userID uint) Room { return Room{Kind: RoomKindUser, ID: userID} }
func CallRoom(chatID uint) Room { return Room{Kind: RoomKindCall, ID: chatID} }
func NamedRoom(name string) Room { return Room{Kind: RoomKindNamed, Name: name} }

// Key returns the wire name: "<chatId>", "user_<id>", "call_<chatId>" or the
// free-form name.
func (r Room) Key() string {
	switch r.Kind {
	case RoomKindChat:
		return strconv.FormatUint(uint64(r.ID), 10)
	case RoomKindUser:
		return userRoomPrefix + strconv.FormatUint(uint64(r.ID), 10)
	case RoomKindCall:
		return callRoomPrefix + strconv.FormatUint(uint64(r.ID), 10)
	default:
		return r.Name
	}
}

func (r Room) String() string {
	return r.Key()
}

// ParseRoom maps a client supplied room name onto a Room. Bare numbers and
// "chat_<n>" are chat rooms; "user_<n>" and "call_<n>" keep their kinds;
// anything else is a named room.
func ParseRoom(raw string) (Room, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return Room{}, fmt.Errorf("empty room name")
	}

	if id, ok := parseID(name); ok {
		return ChatRoom(id), nil
	}
	for prefix, build := range map[string]func(uint) Room{
		chatRoomPrefix: ChatRoom,
		userRoomPrefix: UserRoom,
		callRoomPrefix: CallRoom,
	} {
		if rest, found := strings.CutPrefix(name, prefix); found {
			id, ok := parseID(rest)
			if !ok {
				return Room{}, fmt.Errorf("invalid %s room id %q", strings.TrimSuffix(prefix, "_"), rest)
			}
			return build(id), nil
		}
	}
	return NamedRoom(name), nil
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
