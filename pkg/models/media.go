package models

import "strings"

// MediaKind is the classification of a media source or projection
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindAudio
	MediaKindImage
	MediaKindVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindAudio:
		return "audio"
	case MediaKindImage:
		return "image"
	case MediaKindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ParseMediaKind parses the textual form used in configuration
func ParseMediaKind(s string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio":
		return MediaKindAudio
	case "image":
		return MediaKindImage
	case "video":
		return MediaKindVideo
	default:
		return MediaKindUnknown
	}
}

// AudioContainer identifies an audio-only container
type AudioContainer string

const (
	AudioContainerMP3  AudioContainer = "mp3"
	AudioContainerADTS AudioContainer = "adts"
	AudioContainerMP4  AudioContainer = "mp4"
	AudioContainerFLAC AudioContainer = "flac"
	AudioContainerOGG  AudioContainer = "ogg"
	AudioContainerASF  AudioContainer = "asf"
	AudioContainerLPCM AudioContainer = "lpcm"
)

// ImageContainer identifies an image format
type ImageContainer string

const (
	ImageContainerJPEG ImageContainer = "jpeg"
	ImageContainerPNG  ImageContainer = "png"
	ImageContainerGIF  ImageContainer = "gif"
	ImageContainerRAW  ImageContainer = "raw"
)

// VideoContainer identifies a video container
type VideoContainer string

const (
	VideoContainerAVI      VideoContainer = "avi"
	VideoContainerASF      VideoContainer = "asf"
	VideoContainerMPEGPS   VideoContainer = "mpegps"
	VideoContainerMPEGTS   VideoContainer = "mpegts"
	VideoContainerM2TS     VideoContainer = "m2ts"
	VideoContainerMP4      VideoContainer = "mp4"
	VideoContainerMatroska VideoContainer = "matroska"
	VideoContainerFLV      VideoContainer = "flv"
	VideoContainerOGG      VideoContainer = "ogg"
	VideoContainerHLS      VideoContainer = "hls"
)

// IsTSFamily reports whether the container is one of the MPEG transport stream variants
func (c VideoContainer) IsTSFamily() bool {
	return c == VideoContainerMPEGTS || c == VideoContainerM2TS
}

// VideoCodec identifies a video codec
type VideoCodec string

const (
	VideoCodecH264   VideoCodec = "h264"
	VideoCodecHEVC   VideoCodec = "hevc"
	VideoCodecMPEG1  VideoCodec = "mpeg1"
	VideoCodecMPEG2  VideoCodec = "mpeg2"
	VideoCodecMPEG4  VideoCodec = "mpeg4"
	VideoCodecVC1    VideoCodec = "vc1"
	VideoCodecWMV    VideoCodec = "wmv"
	VideoCodecMJPEG  VideoCodec = "mjpeg"
	VideoCodecTheora VideoCodec = "theora"
	VideoCodecVP8    VideoCodec = "vp8"
	VideoCodecVP9    VideoCodec = "vp9"
	VideoCodecFLV1   VideoCodec = "flv1"
)

// AudioCodec identifies an audio codec
type AudioCodec string

const (
	AudioCodecAAC    AudioCodec = "aac"
	AudioCodecMP3    AudioCodec = "mp3"
	AudioCodecMP2    AudioCodec = "mp2"
	AudioCodecAC3    AudioCodec = "ac3"
	AudioCodecDTS    AudioCodec = "dts"
	AudioCodecLPCM   AudioCodec = "lpcm"
	AudioCodecWMA    AudioCodec = "wma"
	AudioCodecWMAPro AudioCodec = "wmapro"
	AudioCodecVorbis AudioCodec = "vorbis"
	AudioCodecFLAC   AudioCodec = "flac"
	AudioCodecOpus   AudioCodec = "opus"
)

// MediaItem references a library item requested by a client
type MediaItem struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location"`
}
