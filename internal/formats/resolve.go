package formats

import (
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// Params identifies a format combination. For video, Codec is the video
// codec and SecondaryCodec the audio codec; for audio, Codec is the audio
// codec. Frequency and Channels are only consulted for raw PCM.
type Params struct {
	Container      string
	Codec          string
	SecondaryCodec string
	Frequency      int
	Channels       int
}

// ResolveProfileTags returns the candidate profile tags of a format
// combination, most specific first. Combinations outside the tables yield an
// *UnsupportedError.
func ResolveProfileTags(kind models.MediaKind, p Params) ([]string, error) {
	switch kind {
	case models.MediaKindImage:
		return resolveImage(p)
	case models.MediaKindAudio:
		return resolveAudio(p)
	case models.MediaKindVideo:
		return resolveVideo(p)
	default:
		return nil, unsupported(kind, p, "unknown media kind")
	}
}

// TagsForMetadata derives the candidate tags of analyzed or projected metadata
func TagsForMetadata(m *models.MetadataContainer) ([]string, error) {
	if m == nil {
		return nil, unsupported(models.MediaKindUnknown, Params{}, "no metadata")
	}
	return ResolveProfileTags(m.Kind, ParamsFromMetadata(m))
}

// ParamsFromMetadata builds the tag lookup parameters for the metadata's kind
func ParamsFromMetadata(m *models.MetadataContainer) Params {
	var p Params
	audio := m.PrimaryAudio()

	switch m.Kind {
	case models.MediaKindImage:
		p.Container = string(m.Record.ImageContainer)
	case models.MediaKindAudio:
		p.Container = string(m.Record.AudioContainer)
		if audio != nil {
			p.Codec = string(audio.Codec)
			p.Frequency = audio.Frequency
			p.Channels = audio.Channels
		}
	case models.MediaKindVideo:
		p.Container = string(m.Record.VideoContainer)
		if m.Video != nil {
			p.Codec = string(m.Video.Codec)
		}
		if audio != nil {
			p.SecondaryCodec = string(audio.Codec)
		}
	}

	return p
}

func resolveImage(p Params) ([]string, error) {
	tag, ok := imageTags[models.ImageContainer(p.Container)]
	if !ok {
		return nil, unsupported(models.MediaKindImage, p, "")
	}
	return []string{tag}, nil
}

func resolveAudio(p Params) ([]string, error) {
	container := models.AudioContainer(p.Container)

	if container == models.AudioContainerLPCM {
		if p.Frequency == 0 || p.Channels == 0 {
			return []string{lpcmDefaultTag}, nil
		}
		tag, ok := lpcmTags[lpcmKey{frequency: p.Frequency, channels: p.Channels}]
		if !ok {
			return nil, unsupported(models.MediaKindAudio, p, "unsupported sample rate or channel count")
		}
		return []string{tag}, nil
	}

	tag, ok := audioTags[container]
	if !ok {
		return nil, unsupported(models.MediaKindAudio, p, "")
	}
	return []string{tag}, nil
}

func resolveVideo(p Params) ([]string, error) {
	container := models.VideoContainer(p.Container)
	key := avKey{video: models.VideoCodec(p.Codec), audio: models.AudioCodec(p.SecondaryCodec)}

	if tag, ok := anyCodecVideoTags[container]; ok {
		return []string{tag}, nil
	}

	if byCodec, ok := codecVideoTags[container]; ok {
		tags, ok := byCodec[key.video]
		if !ok {
			return nil, unsupported(models.MediaKindVideo, p, "")
		}
		return copyTags(tags), nil
	}

	var table map[avKey][]string
	var suffix string
	switch {
	case container == models.VideoContainerASF:
		table = asfTags
	case container.IsTSFamily():
		table = tsTags
		if container == models.VideoContainerM2TS {
			suffix = m2tsSuffix
		}
	case container == models.VideoContainerHLS:
		table = hlsTags
	default:
		return nil, unsupported(models.MediaKindVideo, p, "unknown container")
	}

	tags, ok := table[key]
	if !ok {
		return nil, unsupported(models.MediaKindVideo, p, "audio/video codec combination not allowed in container")
	}

	out := copyTags(tags)
	for i := range out {
		out[i] += suffix
	}
	return out, nil
}

func copyTags(tags []string) []string {
	return append([]string(nil), tags...)
}

// FindCompatibleMime picks the delivery MIME for a list of candidate tags.
// Canonical tags are matched first, alternates second, each in the client's
// declaration order. ok is false when nothing matches.
func FindCompatibleMime(profile *models.ClientProfile, tags []string) (mime string, ok bool) {
	if profile == nil || len(tags) == 0 {
		return "", false
	}

	candidates := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		candidates[t] = struct{}{}
	}

	for _, m := range profile.Mappings {
		if _, hit := candidates[m.Tag]; hit {
			return m.Mime, true
		}
	}

	for _, m := range profile.Mappings {
		for _, alt := range m.AlternateNames() {
			if _, hit := candidates[alt]; hit {
				return m.Mime, true
			}
		}
	}

	return "", false
}

// DefaultMime returns the built-in delivery MIME of a tag
func DefaultMime(tag string) (string, bool) {
	for _, e := range defaultMimeTypes {
		if e.tag == tag {
			return e.mime, true
		}
	}
	return "", false
}

// DefaultProfile is the capability profile used for clients without a
// declared one: every tag mapped to its built-in MIME.
func DefaultProfile() *models.ClientProfile {
	profile := &models.ClientProfile{
		ID:   "generic",
		Name: "Generic client",
	}
	for _, e := range defaultMimeTypes {
		profile.Mappings = append(profile.Mappings, models.MimeMapping{Tag: e.tag, Mime: e.mime})
	}
	return profile
}
