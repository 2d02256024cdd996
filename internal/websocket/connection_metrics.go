package websocket

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionMetrics tracks relay counters exposed on the stats endpoint.
type ConnectionMetrics struct {
	connectsTotal    atomic.Int64
	disconnectsTotal atomic.Int64
	eventsReceived   atomic.Int64
	eventsRejected   atomic.Int64
	messagesRelayed  atomic.Int64
	signalsRelayed   atomic.Int64
	signalsDropped   atomic.Int64
	sendsDropped     atomic.Int64

	// Broadcast aggregates
	aggLock              sync.Mutex
	totalBroadcasts      int64
	totalDelivered       int64
	totalFailed          int64
	totalBroadcastTime   time.Duration
	peakBroadcastTime    time.Duration
	peakRoomSize         int
	slowBroadcastCeiling time.Duration
}

func NewConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{
		slowBroadcastCeiling: 500 * time.Millisecond,
	}
}

// RecordBroadcast folds one broadcast into the aggregates.
func (cm *ConnectionMetrics) RecordBroadcast(room Room, res PublishResult, took time.Duration) {
	cm.aggLock.Lock()
	cm.totalBroadcasts++
	cm.totalDelivered += int64(res.Delivered)
	cm.totalFailed += int64(res.Failed)
	cm.totalBroadcastTime += took
	if took > cm.peakBroadcastTime {
		cm.peakBroadcastTime = took
	}
	if n := res.Delivered + res.Failed; n > cm.peakRoomSize {
		cm.peakRoomSize = n
	}
	cm.aggLock.Unlock()

	if took > cm.slowBroadcastCeiling {
		slog.Warn("Slow broadcast", "room", room.Key(), "duration", took, "recipients", res.Delivered+res.Failed)
	}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	ActiveConnections  int     `json:"activeConnections"`
	OnlineUsers        int     `json:"onlineUsers"`
	Rooms              int     `json:"rooms"`
	ConnectsTotal      int64   `json:"connectsTotal"`
	DisconnectsTotal   int64   `json:"disconnectsTotal"`
	EventsReceived     int64   `json:"eventsReceived"`
	EventsRejected     int64   `json:"eventsRejected"`
	MessagesRelayed    int64   `json:"messagesRelayed"`
	SignalsRelayed     int64   `json:"signalsRelayed"`
	SignalsDropped     int64   `json:"signalsDropped"`
	SendsDropped       int64   `json:"sendsDropped"`
	Broadcasts         int64   `json:"broadcasts"`
	BroadcastDelivered int64   `json:"broadcastDelivered"`
	BroadcastFailed    int64   `json:"broadcastFailed"`
	AvgBroadcastMs     float64 `json:"avgBroadcastMs"`
	PeakBroadcastMs    float64 `json:"peakBroadcastMs"`
	PeakRoomSize       int     `json:"peakRoomSize"`
}

func (cm *ConnectionMetrics) snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		ConnectsTotal:    cm.connectsTotal.Load(),
		DisconnectsTotal: cm.disconnectsTotal.Load(),
		EventsReceived:   cm.eventsReceived.Load(),
		EventsRejected:   cm.eventsRejected.Load(),
		MessagesRelayed:  cm.messagesRelayed.Load(),
		SignalsRelayed:   cm.signalsRelayed.Load(),
		SignalsDropped:   cm.signalsDropped.Load(),
		SendsDropped:     cm.sendsDropped.Load(),
	}

	cm.aggLock.Lock()
	defer cm.aggLock.Unlock()
	s.Broadcasts = cm.totalBroadcasts
	s.BroadcastDelivered = cm.totalDelivered
	s.BroadcastFailed = cm.totalFailed
	s.PeakRoomSize = cm.peakRoomSize
	s.PeakBroadcastMs = float64(cm.peakBroadcastTime) / float64(time.Millisecond)
	if cm.totalBroadcasts > 0 {
		avg := cm.totalBroadcastTime / time.Duration(cm.totalBroadcasts)
		s.AvgBroadcastMs = float64(avg) / float64(time.Millisecond)
	}
	return s
}
