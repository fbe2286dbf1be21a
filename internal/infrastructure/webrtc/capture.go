package webrtc

import (
	"context"
	"fmt"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/utils"

	"github.com/pion/webrtc/v3"
)

// RTPCaptureDevice builds outbound RTP tracks sized by a preset's
// constraints: Opus audio at the preset's sample rate and channel
// count, plus a VP8 video track unless the preset is audio only. The
// packets themselves come from whatever feeds the tracks (a forwarder
// or an encoder pipeline).
type RTPCaptureDevice struct{}

func NewRTPCaptureDevice() ports.CaptureDevice {
	return &RTPCaptureDevice{}
}

func (d *RTPCaptureDevice) Acquire(ctx context.Context, preset domain.QualityPreset) (ports.CaptureSource, error) {
	id := utils.GeneratePeerID()

	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: uint32(preset.Audio.SampleRate),
			Channels:  uint16(preset.Audio.ChannelCount),
		},
		fmt.Sprintf("audio-%s", preset.Name),
		fmt.Sprintf("streamcast-audio-%s", id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	src := &rtpCaptureSource{audio: NewLocalTrack(audio)}

	if preset.HasVideo() {
		video, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			fmt.Sprintf("video-%s", preset.Name),
			fmt.Sprintf("streamcast-video-%s", id),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create video track: %w", err)
		}
		src.video = NewLocalTrack(video)
	}

	return src, nil
}

type rtpCaptureSource struct {
	audio   *LocalTrack
	video   *LocalTrack
	stopped bool
}

func (s *rtpCaptureSource) AudioTrack() ports.MediaTrack { return s.audio }

func (s *rtpCaptureSource) VideoTrack() ports.MediaTrack {
	if s.video == nil {
		return nil
	}
	return s.video
}

func (s *rtpCaptureSource) Stop() { s.stopped = true }
