package webrtc

import (
	"context"
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSampleBeforeFeedbackReportsCleanLink(t *testing.T) {
	stats := NewRTCPStats(zap.NewNop().Sugar())

	s, err := stats.Sample(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.RoundTripTimeMs)
	assert.Zero(t, s.PacketLossPercent)
	assert.Greater(t, s.BandwidthMbps, 100.0)
}

func TestReceiverReportUpdatesLossAndRTT(t *testing.T) {
	stats := NewRTCPStats(zap.NewNop().Sugar())

	stats.ingest([]rtcp.Packet{
		&rtcp.ReceiverReport{
			Reports: []rtcp.ReceptionReport{{
				FractionLost:     26, // ~10.2% of 255
				LastSenderReport: 1,
				Delay:            13107, // 0.2s in 1/65536 units
			}},
		},
	})

	s, err := stats.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10.2, s.PacketLossPercent, 0.1)
	assert.InDelta(t, 200.0, s.RoundTripTimeMs, 0.1)
	assert.False(t, s.Timestamp.IsZero())
}

func TestREMBUpdatesBandwidth(t *testing.T) {
	stats := NewRTCPStats(zap.NewNop().Sugar())

	stats.ingest([]rtcp.Packet{
		&rtcp.ReceiverEstimatedMaximumBitrate{Bitrate: 2_400_000},
	})

	s, err := stats.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.4, s.BandwidthMbps, 0.001)
}

func TestLatestFeedbackWins(t *testing.T) {
	stats := NewRTCPStats(zap.NewNop().Sugar())

	stats.ingest([]rtcp.Packet{
		&rtcp.ReceiverReport{Reports: []rtcp.ReceptionReport{{FractionLost: 255}}},
	})
	stats.ingest([]rtcp.Packet{
		&rtcp.ReceiverReport{Reports: []rtcp.ReceptionReport{{FractionLost: 0}}},
	})

	s, err := stats.Sample(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.PacketLossPercent)
}
