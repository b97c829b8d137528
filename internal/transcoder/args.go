package transcoder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// ErrNothingToTranscode is returned for passthrough descriptors
var ErrNothingToTranscode = errors.New("descriptor has nothing to transcode")

const (
	playlistName   = "index.m3u8"
	segmentPattern = "segment_%05d.ts"
)

var videoEncoders = map[models.VideoCodec]string{
	models.VideoCodecH264:   "libx264",
	models.VideoCodecHEVC:   "libx265",
	models.VideoCodecMPEG1:  "mpeg1video",
	models.VideoCodecMPEG2:  "mpeg2video",
	models.VideoCodecMPEG4:  "mpeg4",
	models.VideoCodecWMV:    "wmv2",
	models.VideoCodecMJPEG:  "mjpeg",
	models.VideoCodecTheora: "libtheora",
	models.VideoCodecVP8:    "libvpx",
	models.VideoCodecVP9:    "libvpx-vp9",
	models.VideoCodecFLV1:   "flv",
}

var audioEncoders = map[models.AudioCodec]string{
	models.AudioCodecAAC:    "aac",
	models.AudioCodecMP3:    "libmp3lame",
	models.AudioCodecMP2:    "mp2",
	models.AudioCodecAC3:    "ac3",
	models.AudioCodecDTS:    "dca",
	models.AudioCodecLPCM:   "pcm_s16be",
	models.AudioCodecWMA:    "wmav2",
	models.AudioCodecVorbis: "libvorbis",
	models.AudioCodecFLAC:   "flac",
	models.AudioCodecOpus:   "libopus",
}

type muxer struct {
	format string
	ext    string
	extra  []string
}

var videoMuxers = map[models.VideoContainer]muxer{
	models.VideoContainerMPEGTS:   {format: "mpegts", ext: "ts"},
	models.VideoContainerM2TS:     {format: "mpegts", ext: "m2ts", extra: []string{"-mpegts_m2ts_mode", "1"}},
	models.VideoContainerMP4:      {format: "mp4", ext: "mp4", extra: []string{"-movflags", "frag_keyframe+empty_moov"}},
	models.VideoContainerMatroska: {format: "matroska", ext: "mkv"},
	models.VideoContainerAVI:      {format: "avi", ext: "avi"},
	models.VideoContainerASF:      {format: "asf", ext: "asf"},
	models.VideoContainerMPEGPS:   {format: "vob", ext: "mpg"},
	models.VideoContainerFLV:      {format: "flv", ext: "flv"},
	models.VideoContainerOGG:      {format: "ogg", ext: "ogv"},
}

var audioMuxers = map[models.AudioContainer]muxer{
	models.AudioContainerMP3:  {format: "mp3", ext: "mp3"},
	models.AudioContainerADTS: {format: "adts", ext: "aac"},
	models.AudioContainerMP4:  {format: "mp4", ext: "m4a", extra: []string{"-movflags", "frag_keyframe+empty_moov"}},
	models.AudioContainerFLAC: {format: "flac", ext: "flac"},
	models.AudioContainerOGG:  {format: "ogg", ext: "ogg"},
	models.AudioContainerASF:  {format: "asf", ext: "wma"},
	models.AudioContainerLPCM: {format: "s16be", ext: "pcm"},
}

var imageMuxers = map[models.ImageContainer]muxer{
	models.ImageContainerJPEG: {format: "image2", ext: "jpg", extra: []string{"-c:v", "mjpeg", "-q:v", "2"}},
	models.ImageContainerPNG:  {format: "image2", ext: "png", extra: []string{"-c:v", "png"}},
	models.ImageContainerGIF:  {format: "gif", ext: "gif"},
}

// ArgsOptions holds the inputs of an ffmpeg invocation
type ArgsOptions struct {
	Descriptor      *models.TranscodingDescriptor
	Input           string
	OutputDir       string
	SegmentDuration int
	Preset          string
}

// BuildArgs returns the ffmpeg arguments for a descriptor and the path of
// the file the stream is read from: the playlist for segmented output, the
// media file otherwise.
func BuildArgs(opts ArgsOptions) ([]string, string, error) {
	d := opts.Descriptor
	if d == nil || d.Kind == models.DescriptorNone {
		return nil, "", ErrNothingToTranscode
	}
	if opts.Preset == "" {
		opts.Preset = "veryfast"
	}

	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", opts.Input}

	switch d.Kind {
	case models.DescriptorImage:
		return imageArgs(args, d, opts)
	case models.DescriptorAudio:
		return audioArgs(args, d, opts)
	default:
		return videoArgs(args, d, opts)
	}
}

func videoArgs(args []string, d *models.TranscodingDescriptor, opts ArgsOptions) ([]string, string, error) {
	src, dst := d.Source, d.Target

	args = append(args, "-map", "0:v:0", "-map", "0:a:0?")

	var filters []string
	if dst.Height > 0 && dst.Height != src.Height {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", dst.Width, dst.Height))
	}
	if d.Subtitles == models.SubtitlesBurn && src.EmbeddedSubtitles {
		filters = append(filters, fmt.Sprintf("subtitles=%s:si=0", escapeFilterPath(opts.Input)))
	}

	reencode := len(filters) > 0 || dst.VideoCodec != src.VideoCodec ||
		(dst.Bitrate > 0 && dst.Bitrate < src.Bitrate)
	if reencode {
		encoder, ok := videoEncoders[dst.VideoCodec]
		if !ok {
			return nil, "", fmt.Errorf("no encoder for video codec %q", dst.VideoCodec)
		}
		args = append(args, "-c:v", encoder)
		if encoder == "libx264" || encoder == "libx265" {
			args = append(args, "-preset", opts.Preset)
		}
		if len(filters) > 0 {
			args = append(args, "-vf", strings.Join(filters, ","))
		}
		if dst.Bitrate > 0 {
			args = append(args,
				"-b:v", strconv.FormatInt(dst.Bitrate, 10),
				"-maxrate", strconv.FormatInt(dst.Bitrate, 10),
				"-bufsize", strconv.FormatInt(dst.Bitrate*2, 10),
			)
		}
	} else {
		args = append(args, "-c:v", "copy")
	}

	var err error
	if args, err = audioCodecArgs(args, src, dst); err != nil {
		return nil, "", err
	}

	if d.Subtitles == models.SubtitlesCopy && dst.EmbeddedSubtitles {
		args = append(args, "-map", "0:s?", "-c:s", "copy")
	}

	if d.Segmented || dst.VideoContainer == models.VideoContainerHLS {
		segment := opts.SegmentDuration
		if segment <= 0 {
			segment = 4
		}
		playlist := filepath.Join(opts.OutputDir, playlistName)
		args = append(args,
			"-f", "hls",
			"-hls_time", strconv.Itoa(segment),
			"-hls_playlist_type", "event",
			"-hls_flags", "independent_segments+temp_file",
			"-hls_segment_type", "mpegts",
			"-hls_segment_filename", filepath.Join(opts.OutputDir, segmentPattern),
			playlist,
		)
		return args, playlist, nil
	}

	m, ok := videoMuxers[dst.VideoContainer]
	if !ok {
		return nil, "", fmt.Errorf("no muxer for video container %q", dst.VideoContainer)
	}
	return withMuxer(args, m, opts.OutputDir, "stream")
}

func audioArgs(args []string, d *models.TranscodingDescriptor, opts ArgsOptions) ([]string, string, error) {
	args = append(args, "-map", "0:a:0", "-vn")

	var err error
	if args, err = audioCodecArgs(args, d.Source, d.Target); err != nil {
		return nil, "", err
	}

	m, ok := audioMuxers[d.Target.AudioContainer]
	if !ok {
		return nil, "", fmt.Errorf("no muxer for audio container %q", d.Target.AudioContainer)
	}
	return withMuxer(args, m, opts.OutputDir, "stream")
}

func imageArgs(args []string, d *models.TranscodingDescriptor, opts ArgsOptions) ([]string, string, error) {
	dst := d.Target
	args = append(args, "-frames:v", "1")
	if dst.Width > 0 && dst.Height > 0 && dst.Height != d.Source.Height {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", dst.Width, dst.Height))
	}

	m, ok := imageMuxers[dst.ImageContainer]
	if !ok {
		return nil, "", fmt.Errorf("no muxer for image container %q", dst.ImageContainer)
	}
	return withMuxer(args, m, opts.OutputDir, "image")
}

func audioCodecArgs(args []string, src, dst models.FormatSpec) ([]string, error) {
	if dst.AudioCodec == "" {
		if src.AudioCodec == "" {
			return args, nil
		}
		return append(args, "-c:a", "copy"), nil
	}

	same := dst.AudioCodec == src.AudioCodec &&
		(dst.Channels == 0 || dst.Channels == src.Channels) &&
		(dst.Frequency == 0 || dst.Frequency == src.Frequency) &&
		(dst.AudioBitrate == 0 || dst.AudioBitrate >= src.AudioBitrate)
	if same {
		return append(args, "-c:a", "copy"), nil
	}

	encoder, ok := audioEncoders[dst.AudioCodec]
	if !ok {
		return nil, fmt.Errorf("no encoder for audio codec %q", dst.AudioCodec)
	}
	args = append(args, "-c:a", encoder)
	if dst.AudioBitrate > 0 {
		args = append(args, "-b:a", strconv.FormatInt(dst.AudioBitrate, 10))
	}
	if dst.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(dst.Channels))
	}
	if dst.Frequency > 0 {
		args = append(args, "-ar", strconv.Itoa(dst.Frequency))
	}
	return args, nil
}

func withMuxer(args []string, m muxer, dir, base string) ([]string, string, error) {
	output := filepath.Join(dir, base+"."+m.ext)
	args = append(args, m.extra...)
	args = append(args, "-f", m.format, output)
	return args, output, nil
}

// escapeFilterPath escapes a path for use inside an ffmpeg filter graph
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")
	return strings.ReplaceAll(escaped, "'", "\\'")
}
