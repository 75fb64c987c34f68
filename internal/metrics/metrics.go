package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playsync_rooms_created_total",
			Help: "Total rooms created",
		},
	)
	RoomJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playsync_room_joins_total",
			Help: "Total join attempts by result",
		},
		[]string{"result"},
	)
	RoundsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playsync_rounds_resolved_total",
			Help: "Total rounds locked and resolved, by outcome",
		},
		[]string{"outcome"},
	)
	ActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playsync_active_rooms",
			Help: "Rooms currently live in memory",
		},
	)
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playsync_active_connections",
			Help: "WebSocket connections currently bound to a room",
		},
	)
)

func init() {
	prometheus.MustRegister(RoomsCreated)
	prometheus.MustRegister(RoomJoins)
	prometheus.MustRegister(RoundsResolved)
	prometheus.MustRegister(ActiveRooms)
	prometheus.MustRegister(ActiveConnections)
}
