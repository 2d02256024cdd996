package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubSendEncodesEnvelope(t *testing.T) {
	hub := NewHub(nil, 0)
	c := newClient(hub, nil, nil, 4, 0)
	hub.Register(c)

	require.NoError(t, hub.Send(c.ID(), EventIncomingCall, IncomingCallData{ChatID: 9, CallerName: "al", CallerID: 1}))

	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, EventIncomingCall, env.Event)
		assert.JSONEq(t, `{"chatId":9,"callerName":"al","callerId":1}`, string(env.Data))
	default:
		t.Fatal("nothing queued")
	}
}

func TestHubSendUnknownTarget(t *testing.T) {
	hub := NewHub(nil, 0)
	assert.ErrorIs(t, hub.Send("ghost", EventOffer, nil), ErrTargetUnavailable)
}

func TestHubSendDropsWhenBufferFull(t *testing.T) {
	metrics := NewConnectionMetrics()
	hub := NewHub(metrics, 10*time.Millisecond)
	c := newClient(hub, nil, nil, 1, 0)
	hub.Register(c)

	require.NoError(t, hub.Send(c.ID(), EventReceiveMessage, "m1"))
	err := hub.Send(c.ID(), EventReceiveMessage, "m2")
	assert.ErrorIs(t, err, ErrSendBufferFull)
	assert.Equal(t, int64(1), metrics.snapshot().SendsDropped)

	// the queued event is still the first one
	var env Envelope
	require.NoError(t, json.Unmarshal(<-c.send, &env))
	assert.JSONEq(t, `"m1"`, string(env.Data))
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(nil, 0)
	c := newClient(hub, nil, nil, 1, 0)
	hub.Register(c)
	assert.Equal(t, 1, hub.Count())

	hub.Unregister(c.ID())
	hub.Unregister(c.ID())
	assert.Equal(t, 0, hub.Count())
	assert.True(t, c.isClosed())
	assert.ErrorIs(t, hub.Send(c.ID(), EventOffer, nil), ErrTargetUnavailable)
	assert.ErrorIs(t, c.enqueue([]byte("x"), time.Millisecond), ErrTargetUnavailable)
}

func TestHubCloseAllWithoutClients(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, hub.CloseAll(ctx))
}

// countingPayload records how often it gets encoded.
type countingPayload struct {
	n *atomic.Int32
}

func (p countingPayload) MarshalJSON() ([]byte, error) {
	p.n.Add(1)
	return []byte(`{"ok":true}`), nil
}

func TestBroadcastThroughHubEncodesOnce(t *testing.T) {
	hub := NewHub(nil, 0)
	rooms := NewRoomManager(hub)
	var clients []*Client
	for i := 0; i < 3; i++ {
		c := newClient(hub, nil, nil, 4, 0)
		hub.Register(c)
		rooms.Join(ChatRoom(1), c.ID())
		clients = append(clients, c)
	}

	var encoded atomic.Int32
	res := rooms.Broadcast(ChatRoom(1), EventReceiveMessage, countingPayload{n: &encoded}, "")
	assert.Equal(t, PublishResult{Delivered: 3}, res)
	assert.Equal(t, int32(1), encoded.Load())

	for _, c := range clients {
		var env Envelope
		require.NoError(t, json.Unmarshal(<-c.send, &env))
		assert.Equal(t, EventReceiveMessage, env.Event)
		assert.JSONEq(t, `{"ok":true}`, string(env.Data))
	}
}
