package domain

import "time"

// NetworkSample is one observation of transport health, computed from
// transport-level counters once per sampling interval. Samples are not
// persisted; the preset selection rule consumes them immediately.
type NetworkSample struct {
	Timestamp         time.Time
	RoundTripTimeMs   float64
	PacketLossPercent float64
	BandwidthMbps     float64
}
