package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// FFmpegTranscoder re-encodes stored recordings through an external
// ffmpeg process. Input is piped on stdin and output read from stdout,
// so neither side is ever buffered whole: the store reader is pulled
// only as fast as ffmpeg consumes, and ffmpeg's output moves only as
// fast as the response writer accepts it. Killing the process on
// context cancellation unblocks both pipes.
type FFmpegTranscoder struct {
	ffmpegPath string
	logger     *zap.SugaredLogger
}

func NewFFmpegTranscoder(ffmpegPath string, logger *zap.SugaredLogger) ports.Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, logger: logger}
}

// videoArgs builds the re-encode arguments for one video tier: webm
// container, VP8 video scaled to the tier's resolution, Opus audio.
func videoArgs(preset domain.QualityPreset) []string {
	v := preset.Video
	return []string{
		"-nostdin",
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-c:v", "libvpx",
		"-vf", fmt.Sprintf("scale=%d:%d", v.Width, v.Height),
		"-b:v", strconv.Itoa(v.Bitrate),
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(preset.Audio.Bitrate),
		"-f", "webm",
		"pipe:1",
	}
}

// audioArgs builds the audio extraction arguments: video stream
// dropped, MP3 at a fixed 128k.
func audioArgs() []string {
	return []string{
		"-nostdin",
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-f", "mp3",
		"pipe:1",
	}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, src io.Reader, w io.Writer, name domain.PresetName) error {
	preset, ok := domain.Preset(name)
	if !ok || !preset.HasVideo() {
		return fmt.Errorf("no video transcode profile for preset %q", name)
	}
	return t.run(ctx, videoArgs(preset), src, w)
}

func (t *FFmpegTranscoder) TranscodeAudio(ctx context.Context, src io.Reader, w io.Writer) error {
	return t.run(ctx, audioArgs(), src, w)
}

func (t *FFmpegTranscoder) run(ctx context.Context, args []string, src io.Reader, w io.Writer) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Stdin = src
	cmd.Stdout = w

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debugw("starting transcode", "args", args)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Client went away; the kill is the expected outcome.
			t.logger.Infow("transcode cancelled", "error", ctx.Err())
			return ctx.Err()
		}
		msg := bytes.TrimSpace(stderr.Bytes())
		t.logger.Errorw("transcode failed", "error", err, "stderr", string(msg))
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}
