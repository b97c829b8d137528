package models

import "strings"

// ClientProfile is a client's declared delivery capabilities: an ordered
// list of profile tags mapped to delivery MIME types, plus the transcoding
// rules used when the source cannot be delivered as is.
type ClientProfile struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	EstimateSize bool            `json:"estimate_size"`
	Mappings     []MimeMapping   `json:"mappings"`
	Rules        []TranscodeRule `json:"rules,omitempty"`
}

// MimeMapping maps a canonical profile tag, and optionally a comma-separated
// list of alternate tag names, to a delivery MIME type.
type MimeMapping struct {
	Tag        string `json:"tag"`
	Alternates string `json:"alternates,omitempty"`
	Mime       string `json:"mime"`
}

// AlternateNames splits the alternate list
func (m MimeMapping) AlternateNames() []string {
	if m.Alternates == "" {
		return nil
	}

	var names []string
	for _, name := range strings.Split(m.Alternates, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// TranscodeRule matches a class of sources and names the target to produce.
// Empty match lists match anything.
type TranscodeRule struct {
	Kind          string     `json:"kind"` // audio, image, video
	Containers    []string   `json:"containers,omitempty"`
	VideoCodecs   []string   `json:"video_codecs,omitempty"`
	AudioCodecs   []string   `json:"audio_codecs,omitempty"`
	LiveOnly      bool       `json:"live_only,omitempty"`
	SubtitlesOnly bool       `json:"subtitles_only,omitempty"`
	Target        RuleTarget `json:"target"`
}

// RuleTarget is the output side of a transcoding rule
type RuleTarget struct {
	Container    string `json:"container"`
	VideoCodec   string `json:"video_codec,omitempty"`
	AudioCodec   string `json:"audio_codec,omitempty"`
	MaxBitrate   int64  `json:"max_bitrate,omitempty"`
	MaxHeight    int    `json:"max_height,omitempty"`
	AudioBitrate int64  `json:"audio_bitrate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
	Frequency    int    `json:"frequency,omitempty"`
	Subtitles    string `json:"subtitles,omitempty"`
}
