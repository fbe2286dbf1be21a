package webrtc

import (
	"context"
	"errors"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// TrackForwarder relays RTP packets from one inbound remote track to a
// local outbound track. It is the bridge between a publisher's media
// arriving on one peer connection and the viewer connection carrying it
// on, one source to one sink.
type TrackForwarder struct {
	out    *webrtc.TrackLocalStaticRTP
	logger *zap.SugaredLogger
}

func NewTrackForwarder(out *webrtc.TrackLocalStaticRTP, logger *zap.SugaredLogger) *TrackForwarder {
	return &TrackForwarder{out: out, logger: logger}
}

// Forward pumps packets until the source track ends or ctx is
// cancelled. A failed write to the sink skips the packet rather than
// stopping the relay.
func (f *TrackForwarder) Forward(ctx context.Context, track *webrtc.TrackRemote) error {
	buf := make([]byte, 1500) // MTU
	pkt := &rtp.Packet{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := track.Read(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := pkt.Unmarshal(buf[:n]); err != nil {
			f.logger.Warnw("dropping malformed rtp packet", "track_id", track.ID(), "error", err)
			continue
		}

		if err := f.out.WriteRTP(pkt); err != nil {
			f.logger.Warnw("failed to write rtp packet", "track_id", track.ID(), "error", err)
		}
	}
}
