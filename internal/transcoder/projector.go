package transcoder

import "github.com/therealutkarshpriyadarshi/mediastream/pkg/models"

// Projector derives the metadata a transcode will produce from its descriptor
type Projector struct{}

// ProjectMetadata returns the output metadata of d. A passthrough
// descriptor projects to its source.
func (Projector) ProjectMetadata(d *models.TranscodingDescriptor) *models.MetadataContainer {
	if d == nil {
		return nil
	}

	spec := d.Target
	if d.Kind == models.DescriptorNone {
		spec = d.Source
	}

	meta := &models.MetadataContainer{
		Record: models.MediaRecord{
			Location: d.Input,
			Duration: spec.Duration,
		},
	}

	switch d.Kind {
	case models.DescriptorAudio:
		meta.Kind = models.MediaKindAudio
		meta.Record.AudioContainer = spec.AudioContainer
		meta.Record.Bitrate = spec.AudioBitrate
		if meta.Record.Bitrate == 0 {
			meta.Record.Bitrate = spec.Bitrate
		}
	case models.DescriptorImage:
		meta.Kind = models.MediaKindImage
		meta.Record.ImageContainer = spec.ImageContainer
		meta.Image = &models.ImageStream{Width: spec.Width, Height: spec.Height}
	default:
		meta.Kind = models.Classify(&models.MetadataContainer{Record: models.MediaRecord{
			AudioContainer: spec.AudioContainer,
			ImageContainer: spec.ImageContainer,
			VideoContainer: spec.VideoContainer,
		}})
		if meta.Kind == models.MediaKindUnknown && d.Kind == models.DescriptorVideo {
			meta.Kind = models.MediaKindVideo
		}
		meta.Record.AudioContainer = spec.AudioContainer
		meta.Record.ImageContainer = spec.ImageContainer
		meta.Record.VideoContainer = spec.VideoContainer
		if spec.VideoCodec != "" {
			meta.Video = &models.VideoStream{
				Codec:   spec.VideoCodec,
				Width:   spec.Width,
				Height:  spec.Height,
				Bitrate: spec.Bitrate,
			}
		}
		meta.Record.Bitrate = spec.Bitrate + spec.AudioBitrate
		if spec.EmbeddedSubtitles {
			meta.Subtitles = []models.SubtitleStream{{Embedded: true}}
		}
	}

	if spec.AudioCodec != "" {
		meta.Audio = []models.AudioStream{{
			Codec:     spec.AudioCodec,
			Channels:  spec.Channels,
			Frequency: spec.Frequency,
			Bitrate:   spec.AudioBitrate,
		}}
	}

	return meta
}
