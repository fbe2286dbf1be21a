package webrtc

import (
	"context"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// PacketSource yields inbound RTCP packets from one sender or receiver.
type PacketSource interface {
	ReadRTCP() ([]rtcp.Packet, error)
}

// SenderSource adapts an RTPSender, whose inbound RTCP stream carries
// the remote side's receiver reports about our outgoing media.
func SenderSource(s *webrtc.RTPSender) PacketSource {
	return senderSource{s}
}

type senderSource struct{ s *webrtc.RTPSender }

func (ss senderSource) ReadRTCP() ([]rtcp.Packet, error) {
	pkts, _, err := ss.s.ReadRTCP()
	return pkts, err
}

// RTCPStats derives NetworkSample values from the RTCP feedback the
// remote peer sends about our outgoing stream: round trip from the
// receiver report's LSR/DLSR fields, loss from the fraction-lost
// octet, and bandwidth from REMB estimates. The last computed values
// are held until fresher feedback arrives.
type RTCPStats struct {
	logger *zap.SugaredLogger

	mu     sync.Mutex
	sample domain.NetworkSample
	seen   bool
}

func NewRTCPStats(logger *zap.SugaredLogger) *RTCPStats {
	return &RTCPStats{logger: logger}
}

// Watch consumes src until it fails or ctx is cancelled. Run it in its
// own goroutine per attached sender.
func (r *RTCPStats) Watch(ctx context.Context, src PacketSource) {
	for {
		if ctx.Err() != nil {
			return
		}
		pkts, err := src.ReadRTCP()
		if err != nil {
			r.logger.Debugw("rtcp read ended", "error", err)
			return
		}
		r.ingest(pkts)
	}
}

func (r *RTCPStats) ingest(pkts []rtcp.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pkt := range pkts {
		switch p := pkt.(type) {
		case *rtcp.ReceiverReport:
			for _, report := range p.Reports {
				r.sample.PacketLossPercent = float64(report.FractionLost) / 255.0 * 100.0
				if report.LastSenderReport != 0 {
					// DLSR is in 1/65536 second units.
					r.sample.RoundTripTimeMs = float64(report.Delay) / 65536.0 * 1000.0
				}
				r.seen = true
			}
		case *rtcp.ReceiverEstimatedMaximumBitrate:
			r.sample.BandwidthMbps = float64(p.Bitrate) / 1e6
			r.seen = true
		}
	}
	if r.seen {
		r.sample.Timestamp = time.Now()
	}
}

// Sample returns the latest derived sample. Before any feedback has
// arrived it reports a clean link, so the preset selection stays at
// its current tier instead of reacting to zeros.
func (r *RTCPStats) Sample(ctx context.Context) (domain.NetworkSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen {
		return domain.NetworkSample{
			Timestamp:     time.Now(),
			BandwidthMbps: 1000,
		}, nil
	}
	return r.sample, nil
}

var _ ports.StatsProvider = (*RTCPStats)(nil)
