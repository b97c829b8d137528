package transcoder

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

var videoCodecs = map[string]models.VideoCodec{
	"h264":       models.VideoCodecH264,
	"hevc":       models.VideoCodecHEVC,
	"mpeg1video": models.VideoCodecMPEG1,
	"mpeg2video": models.VideoCodecMPEG2,
	"mpeg4":      models.VideoCodecMPEG4,
	"msmpeg4v3":  models.VideoCodecMPEG4,
	"vc1":        models.VideoCodecVC1,
	"wmv1":       models.VideoCodecWMV,
	"wmv2":       models.VideoCodecWMV,
	"wmv3":       models.VideoCodecWMV,
	"mjpeg":      models.VideoCodecMJPEG,
	"theora":     models.VideoCodecTheora,
	"vp8":        models.VideoCodecVP8,
	"vp9":        models.VideoCodecVP9,
	"flv1":       models.VideoCodecFLV1,
}

var audioCodecs = map[string]models.AudioCodec{
	"aac":    models.AudioCodecAAC,
	"mp3":    models.AudioCodecMP3,
	"mp2":    models.AudioCodecMP2,
	"ac3":    models.AudioCodecAC3,
	"eac3":   models.AudioCodecAC3,
	"dts":    models.AudioCodecDTS,
	"wmav1":  models.AudioCodecWMA,
	"wmav2":  models.AudioCodecWMA,
	"wmapro": models.AudioCodecWMAPro,
	"vorbis": models.AudioCodecVorbis,
	"flac":   models.AudioCodecFLAC,
	"opus":   models.AudioCodecOpus,
}

var imageCodecs = map[string]models.ImageContainer{
	"mjpeg": models.ImageContainerJPEG,
	"png":   models.ImageContainerPNG,
	"gif":   models.ImageContainerGIF,
}

// toMetadata converts ffprobe output to a classified metadata container
func toMetadata(p *ProbeResult, location string) *models.MetadataContainer {
	meta := &models.MetadataContainer{
		Record: models.MediaRecord{Location: location},
	}

	meta.Record.Duration, _ = strconv.ParseFloat(p.Format.Duration, 64)
	meta.Record.Size, _ = strconv.ParseInt(p.Format.Size, 10, 64)
	meta.Record.Bitrate, _ = strconv.ParseInt(p.Format.BitRate, 10, 64)

	formatNames := strings.Split(p.Format.FormatName, ",")
	image := isImageFormat(formatNames)

	for _, stream := range p.Streams {
		switch stream.CodecType {
		case "video":
			if image {
				if meta.Image == nil {
					container, ok := imageCodecs[stream.CodecName]
					if !ok {
						container = models.ImageContainerRAW
					}
					meta.Record.ImageContainer = container
					meta.Image = &models.ImageStream{Width: stream.Width, Height: stream.Height}
				}
				continue
			}
			if meta.Video != nil || isAttachedPicture(stream) {
				continue
			}
			bitrate, _ := strconv.ParseInt(stream.BitRate, 10, 64)
			meta.Video = &models.VideoStream{
				Codec:     videoCodecs[stream.CodecName],
				Width:     stream.Width,
				Height:    stream.Height,
				Bitrate:   bitrate,
				FrameRate: parseFrameRate(stream.AvgFrameRate),
			}
		case "audio":
			bitrate, _ := strconv.ParseInt(stream.BitRate, 10, 64)
			frequency, _ := strconv.Atoi(stream.SampleRate)
			meta.Audio = append(meta.Audio, models.AudioStream{
				Codec:     audioCodec(stream.CodecName),
				Channels:  stream.Channels,
				Frequency: frequency,
				Bitrate:   bitrate,
				Language:  stream.Tags["language"],
			})
		case "subtitle":
			meta.Subtitles = append(meta.Subtitles, models.SubtitleStream{
				Codec:    stream.CodecName,
				Language: stream.Tags["language"],
				Embedded: true,
			})
		}
	}

	if !image {
		if meta.Video != nil {
			meta.Record.VideoContainer = videoContainer(formatNames, location)
		} else if len(meta.Audio) > 0 {
			meta.Record.AudioContainer = audioContainer(formatNames)
		}
	}

	meta.Kind = models.Classify(meta)
	return meta
}

func isImageFormat(names []string) bool {
	for _, name := range names {
		if name == "image2" || name == "gif" || strings.HasSuffix(name, "_pipe") {
			return true
		}
	}
	return false
}

// isAttachedPicture reports cover art embedded in audio files
func isAttachedPicture(s StreamInfo) bool {
	_, ok := imageCodecs[s.CodecName]
	return ok && s.AvgFrameRate == "0/0"
}

func audioCodec(name string) models.AudioCodec {
	if strings.HasPrefix(name, "pcm_") {
		return models.AudioCodecLPCM
	}
	return audioCodecs[name]
}

func videoContainer(names []string, location string) models.VideoContainer {
	for _, name := range names {
		switch name {
		case "mp4", "mov":
			return models.VideoContainerMP4
		case "matroska", "webm":
			return models.VideoContainerMatroska
		case "mpegts":
			switch strings.ToLower(filepath.Ext(location)) {
			case ".m2ts", ".mts":
				return models.VideoContainerM2TS
			}
			return models.VideoContainerMPEGTS
		case "mpeg", "vob":
			return models.VideoContainerMPEGPS
		case "avi":
			return models.VideoContainerAVI
		case "asf":
			return models.VideoContainerASF
		case "flv":
			return models.VideoContainerFLV
		case "ogg":
			return models.VideoContainerOGG
		case "hls", "applehttp":
			return models.VideoContainerHLS
		}
	}
	return ""
}

func audioContainer(names []string) models.AudioContainer {
	for _, name := range names {
		switch name {
		case "mp3":
			return models.AudioContainerMP3
		case "aac":
			return models.AudioContainerADTS
		case "mp4", "m4a", "mov":
			return models.AudioContainerMP4
		case "flac":
			return models.AudioContainerFLAC
		case "ogg":
			return models.AudioContainerOGG
		case "asf":
			return models.AudioContainerASF
		case "wav", "s16le", "s16be", "aiff":
			return models.AudioContainerLPCM
		}
	}
	return ""
}

func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return 0
	}
	n, _ := strconv.ParseFloat(num, 64)
	d, _ := strconv.ParseFloat(den, 64)
	if d == 0 {
		return 0
	}
	return n / d
}
