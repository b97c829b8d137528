package models

import "strings"

// MetadataContainer describes either an analyzed source or a projected
// transcoding output.
type MetadataContainer struct {
	Kind      MediaKind        `json:"kind"`
	Record    MediaRecord      `json:"record"`
	Video     *VideoStream     `json:"video,omitempty"`
	Image     *ImageStream     `json:"image,omitempty"`
	Audio     []AudioStream    `json:"audio,omitempty"`
	Subtitles []SubtitleStream `json:"subtitles,omitempty"`
}

// MediaRecord holds the container-level fields of a media item
type MediaRecord struct {
	Location       string         `json:"location,omitempty"`
	MimeType       string         `json:"mime_type,omitempty"`
	AudioContainer AudioContainer `json:"audio_container,omitempty"`
	ImageContainer ImageContainer `json:"image_container,omitempty"`
	VideoContainer VideoContainer `json:"video_container,omitempty"`
	Size           int64          `json:"size"`
	Bitrate        int64          `json:"bitrate"`  // bits per second
	Duration       float64        `json:"duration"` // seconds
}

// VideoStream describes the primary video stream
type VideoStream struct {
	Codec     VideoCodec `json:"codec"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Bitrate   int64      `json:"bitrate"`
	FrameRate float64    `json:"frame_rate"`
}

// ImageStream describes an image
type ImageStream struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AudioStream describes one audio track
type AudioStream struct {
	Codec     AudioCodec `json:"codec"`
	Channels  int        `json:"channels"`
	Frequency int        `json:"frequency"`
	Bitrate   int64      `json:"bitrate"`
	Language  string     `json:"language,omitempty"`
}

// SubtitleStream describes one subtitle track
type SubtitleStream struct {
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
	Embedded bool   `json:"embedded"`
}

// Classify derives the media kind from the container's data. The explicit
// mime prefix wins, then whichever container field is set, then the
// presence of audio streams.
func Classify(m *MetadataContainer) MediaKind {
	if m == nil {
		return MediaKindUnknown
	}

	mime := strings.ToLower(m.Record.MimeType)
	switch {
	case strings.HasPrefix(mime, "video/"):
		return MediaKindVideo
	case strings.HasPrefix(mime, "image/"):
		return MediaKindImage
	case strings.HasPrefix(mime, "audio/"):
		return MediaKindAudio
	}

	switch {
	case m.Record.VideoContainer != "":
		return MediaKindVideo
	case m.Record.ImageContainer != "":
		return MediaKindImage
	case m.Record.AudioContainer != "":
		return MediaKindAudio
	}

	if len(m.Audio) > 0 && m.Video == nil && m.Image == nil {
		return MediaKindAudio
	}

	return MediaKindUnknown
}

// PrimaryAudio returns the first audio stream, or nil
func (m *MetadataContainer) PrimaryAudio() *AudioStream {
	if m == nil || len(m.Audio) == 0 {
		return nil
	}
	return &m.Audio[0]
}

// HasEmbeddedSubtitles reports whether any subtitle track is embedded in the source
func (m *MetadataContainer) HasEmbeddedSubtitles() bool {
	if m == nil {
		return false
	}
	for _, s := range m.Subtitles {
		if s.Embedded {
			return true
		}
	}
	return false
}

// ReadyForTranscoding reports whether the analyzer produced the
// kind-specific fields the decision engine needs.
func (m *MetadataContainer) ReadyForTranscoding() bool {
	if m == nil {
		return false
	}

	switch m.Kind {
	case MediaKindAudio:
		audio := m.PrimaryAudio()
		return m.Record.AudioContainer != "" && audio != nil && audio.Codec != ""
	case MediaKindImage:
		return m.Record.ImageContainer != "" && m.Image != nil
	case MediaKindVideo:
		return m.Record.VideoContainer != "" && m.Video != nil && m.Video.Codec != ""
	default:
		return false
	}
}

// Clone returns a deep copy
func (m *MetadataContainer) Clone() *MetadataContainer {
	if m == nil {
		return nil
	}

	out := *m
	if m.Video != nil {
		v := *m.Video
		out.Video = &v
	}
	if m.Image != nil {
		i := *m.Image
		out.Image = &i
	}
	out.Audio = append([]AudioStream(nil), m.Audio...)
	out.Subtitles = append([]SubtitleStream(nil), m.Subtitles...)
	return &out
}
