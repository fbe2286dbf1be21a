package domain

// PresetName identifies a quality tier, ordered by descending resource
// cost: high > medium > low > audio-only.
type PresetName string

const (
	PresetHigh      PresetName = "high"
	PresetMedium    PresetName = "medium"
	PresetLow       PresetName = "low"
	PresetAudioOnly PresetName = "audioOnly"
)

// VideoConstraints are the capture constraints of a preset's video track.
type VideoConstraints struct {
	Width     int
	Height    int
	FrameRate int
	Bitrate   int // bps
}

// AudioConstraints are the capture constraints of a preset's audio track.
type AudioConstraints struct {
	SampleRate   int
	ChannelCount int
	Bitrate      int // bps
}

// QualityPreset bundles the fixed constraints of one tier. An audio-only
// preset has no video constraints.
type QualityPreset struct {
	Name  PresetName
	Video *VideoConstraints
	Audio AudioConstraints
}

// HasVideo reports whether the preset carries a video track.
func (p QualityPreset) HasVideo() bool {
	return p.Video != nil
}

var presets = map[PresetName]QualityPreset{
	PresetHigh: {
		Name:  PresetHigh,
		Video: &VideoConstraints{Width: 1280, Height: 720, FrameRate: 30, Bitrate: 2_500_000},
		Audio: AudioConstraints{SampleRate: 48000, ChannelCount: 2, Bitrate: 128_000},
	},
	PresetMedium: {
		Name:  PresetMedium,
		Video: &VideoConstraints{Width: 854, Height: 480, FrameRate: 25, Bitrate: 1_000_000},
		Audio: AudioConstraints{SampleRate: 44100, ChannelCount: 2, Bitrate: 96_000},
	},
	PresetLow: {
		Name:  PresetLow,
		Video: &VideoConstraints{Width: 640, Height: 360, FrameRate: 20, Bitrate: 500_000},
		Audio: AudioConstraints{SampleRate: 22050, ChannelCount: 1, Bitrate: 64_000},
	},
	PresetAudioOnly: {
		Name:  PresetAudioOnly,
		Audio: AudioConstraints{SampleRate: 22050, ChannelCount: 1, Bitrate: 32_000},
	},
}

// Preset returns the fixed preset for a tier name.
func Preset(name PresetName) (QualityPreset, bool) {
	p, ok := presets[name]
	return p, ok
}

// ValidPreset reports whether name is a known tier.
func ValidPreset(name PresetName) bool {
	_, ok := presets[name]
	return ok
}
