package models

// DescriptorKind is the variant of a transcoding descriptor
type DescriptorKind int

const (
	DescriptorNone DescriptorKind = iota
	DescriptorAudio
	DescriptorImage
	DescriptorVideo
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorAudio:
		return "audio"
	case DescriptorImage:
		return "image"
	case DescriptorVideo:
		return "video"
	default:
		return "none"
	}
}

// SubtitlePolicy controls what happens to source subtitles during transcoding
type SubtitlePolicy string

const (
	SubtitlesNone SubtitlePolicy = "none"
	SubtitlesBurn SubtitlePolicy = "burn"
	SubtitlesCopy SubtitlePolicy = "copy"
)

// TranscodingDescriptor is the resolved source to target conversion plan of
// a session. A descriptor of kind DescriptorNone delivers the source as is.
type TranscodingDescriptor struct {
	Kind        DescriptorKind `json:"kind"`
	TranscodeID string         `json:"transcode_id"`
	Input       string         `json:"input"`
	Source      FormatSpec     `json:"source"`
	Target      FormatSpec     `json:"target"`

	// video only
	Segmented bool           `json:"segmented,omitempty"`
	Subtitles SubtitlePolicy `json:"subtitles,omitempty"`
}

// FormatSpec is the shape shared by the source and target of a descriptor
type FormatSpec struct {
	AudioContainer    AudioContainer `json:"audio_container,omitempty"`
	ImageContainer    ImageContainer `json:"image_container,omitempty"`
	VideoContainer    VideoContainer `json:"video_container,omitempty"`
	VideoCodec        VideoCodec     `json:"video_codec,omitempty"`
	AudioCodec        AudioCodec     `json:"audio_codec,omitempty"`
	Width             int            `json:"width,omitempty"`
	Height            int            `json:"height,omitempty"`
	Bitrate           int64          `json:"bitrate,omitempty"`
	AudioBitrate      int64          `json:"audio_bitrate,omitempty"`
	Channels          int            `json:"channels,omitempty"`
	Frequency         int            `json:"frequency,omitempty"`
	Duration          float64        `json:"duration,omitempty"`
	EmbeddedSubtitles bool           `json:"embedded_subtitles,omitempty"`
}

// SpecFromMetadata captures the descriptor-relevant fields of analyzed metadata
func SpecFromMetadata(m *MetadataContainer) FormatSpec {
	if m == nil {
		return FormatSpec{}
	}

	spec := FormatSpec{
		AudioContainer:    m.Record.AudioContainer,
		ImageContainer:    m.Record.ImageContainer,
		VideoContainer:    m.Record.VideoContainer,
		Bitrate:           m.Record.Bitrate,
		Duration:          m.Record.Duration,
		EmbeddedSubtitles: m.HasEmbeddedSubtitles(),
	}

	if m.Video != nil {
		spec.VideoCodec = m.Video.Codec
		spec.Width = m.Video.Width
		spec.Height = m.Video.Height
		if m.Video.Bitrate > 0 {
			spec.Bitrate = m.Video.Bitrate
		}
	}
	if m.Image != nil {
		spec.Width = m.Image.Width
		spec.Height = m.Image.Height
	}
	if a := m.PrimaryAudio(); a != nil {
		spec.AudioCodec = a.Codec
		spec.AudioBitrate = a.Bitrate
		spec.Channels = a.Channels
		spec.Frequency = a.Frequency
	}

	return spec
}
