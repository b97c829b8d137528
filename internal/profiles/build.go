package profiles

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// Audio codec used when the source's codec cannot go into the target container
var defaultVideoAudioCodec = map[models.VideoContainer]models.AudioCodec{
	models.VideoContainerHLS:      models.AudioCodecAAC,
	models.VideoContainerMPEGTS:   models.AudioCodecAAC,
	models.VideoContainerM2TS:     models.AudioCodecAC3,
	models.VideoContainerMP4:      models.AudioCodecAAC,
	models.VideoContainerMPEGPS:   models.AudioCodecMP2,
	models.VideoContainerASF:      models.AudioCodecWMA,
	models.VideoContainerOGG:      models.AudioCodecVorbis,
	models.VideoContainerMatroska: models.AudioCodecAAC,
	models.VideoContainerAVI:      models.AudioCodecMP3,
	models.VideoContainerFLV:      models.AudioCodecAAC,
}

var defaultAudioCodec = map[models.AudioContainer]models.AudioCodec{
	models.AudioContainerMP3:  models.AudioCodecMP3,
	models.AudioContainerADTS: models.AudioCodecAAC,
	models.AudioContainerMP4:  models.AudioCodecAAC,
	models.AudioContainerFLAC: models.AudioCodecFLAC,
	models.AudioContainerOGG:  models.AudioCodecVorbis,
	models.AudioContainerASF:  models.AudioCodecWMA,
	models.AudioContainerLPCM: models.AudioCodecLPCM,
}

func baseDescriptor(kind models.DescriptorKind, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	source := models.SpecFromMetadata(meta)
	return &models.TranscodingDescriptor{
		Kind:        kind,
		TranscodeID: transcodeID,
		Input:       meta.Record.Location,
		Source:      source,
		Target:      models.FormatSpec{Duration: source.Duration},
	}
}

func videoDescriptor(t models.RuleTarget, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	d := baseDescriptor(models.DescriptorVideo, meta, transcodeID)
	src := d.Source

	d.Target.VideoContainer = models.VideoContainer(strings.ToLower(t.Container))
	d.Target.VideoCodec = src.VideoCodec
	if t.VideoCodec != "" {
		d.Target.VideoCodec = models.VideoCodec(strings.ToLower(t.VideoCodec))
	}

	d.Target.AudioCodec = models.AudioCodec(strings.ToLower(t.AudioCodec))
	if d.Target.AudioCodec == "" && src.AudioCodec != "" {
		d.Target.AudioCodec = src.AudioCodec
		p := formats.Params{
			Container:      string(d.Target.VideoContainer),
			Codec:          string(d.Target.VideoCodec),
			SecondaryCodec: string(src.AudioCodec),
		}
		if _, err := formats.ResolveProfileTags(models.MediaKindVideo, p); err != nil {
			if codec, ok := defaultVideoAudioCodec[d.Target.VideoContainer]; ok {
				d.Target.AudioCodec = codec
			}
		}
	}

	d.Target.Width, d.Target.Height = scale(src.Width, src.Height, t.MaxHeight)
	d.Target.Bitrate = capped(src.Bitrate, t.MaxBitrate)
	applyAudioTarget(&d.Target, src, t)

	d.Subtitles = models.SubtitlePolicy(strings.ToLower(t.Subtitles))
	if d.Subtitles == "" {
		d.Subtitles = models.SubtitlesNone
	}
	d.Target.EmbeddedSubtitles = d.Subtitles == models.SubtitlesCopy && src.EmbeddedSubtitles
	d.Segmented = d.Target.VideoContainer == models.VideoContainerHLS

	return d
}

func audioDescriptor(t models.RuleTarget, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	d := baseDescriptor(models.DescriptorAudio, meta, transcodeID)
	src := d.Source

	d.Target.AudioContainer = models.AudioContainer(strings.ToLower(t.Container))
	d.Target.AudioCodec = models.AudioCodec(strings.ToLower(t.AudioCodec))
	if d.Target.AudioCodec == "" {
		d.Target.AudioCodec = defaultAudioCodec[d.Target.AudioContainer]
	}
	applyAudioTarget(&d.Target, src, t)
	d.Target.Bitrate = d.Target.AudioBitrate

	return d
}

func imageDescriptor(t models.RuleTarget, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	d := baseDescriptor(models.DescriptorImage, meta, transcodeID)
	d.Target.ImageContainer = models.ImageContainer(strings.ToLower(t.Container))
	d.Target.Width, d.Target.Height = scale(d.Source.Width, d.Source.Height, t.MaxHeight)
	return d
}

func applyAudioTarget(target *models.FormatSpec, src models.FormatSpec, t models.RuleTarget) {
	if target.AudioCodec == "" {
		return
	}
	target.AudioBitrate = capped(src.AudioBitrate, t.AudioBitrate)
	target.Channels = src.Channels
	if t.Channels > 0 && (src.Channels == 0 || src.Channels > t.Channels) {
		target.Channels = t.Channels
	}
	target.Frequency = src.Frequency
	if t.Frequency > 0 {
		target.Frequency = t.Frequency
	}
}

// scale fits the frame under maxHeight keeping the aspect ratio and an even width
func scale(width, height, maxHeight int) (int, int) {
	if maxHeight <= 0 || height <= maxHeight || height == 0 {
		return width, height
	}
	w := width * maxHeight / height
	if w%2 != 0 {
		w++
	}
	return w, maxHeight
}

// capped returns limit when value is unknown or above it
func capped(value, limit int64) int64 {
	if limit <= 0 {
		return value
	}
	if value <= 0 || value > limit {
		return limit
	}
	return value
}
