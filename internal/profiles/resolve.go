package profiles

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// remuxOrder is the container preference when a video source only needs a
// new container
var remuxOrder = []models.VideoContainer{
	models.VideoContainerMPEGTS,
	models.VideoContainerMatroska,
	models.VideoContainerMP4,
	models.VideoContainerAVI,
}

// liveVideoTargets are tried in order when no live rule matches
var liveVideoTargets = []models.VideoContainer{
	models.VideoContainerHLS,
	models.VideoContainerMPEGTS,
}

// ResolveAudioTranscoding applies the first matching audio rule
func (m *Manager) ResolveAudioTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor {
	rule := m.match(profileID, models.MediaKindAudio, meta, live, false)
	if rule == nil {
		return nil
	}
	return audioDescriptor(rule.Target, meta, transcodeID)
}

// ResolveImageTranscoding applies the first matching image rule
func (m *Manager) ResolveImageTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor {
	rule := m.match(profileID, models.MediaKindImage, meta, live, false)
	if rule == nil {
		return nil
	}
	return imageDescriptor(rule.Target, meta, transcodeID)
}

// ResolveVideoTranscoding applies the first matching video rule. Without one,
// a source the client cannot play is remuxed into the first container the
// client maps.
func (m *Manager) ResolveVideoTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor {
	if meta == nil || meta.Video == nil {
		return nil
	}

	if rule := m.match(profileID, models.MediaKindVideo, meta, live, false); rule != nil {
		return videoDescriptor(rule.Target, meta, transcodeID)
	}

	profile := m.Lookup(profileID)
	if playable(profile, meta.Kind, formats.ParamsFromMetadata(meta)) {
		return nil
	}

	audio := sourceAudioCodec(meta)
	for _, container := range remuxOrder {
		if container == meta.Record.VideoContainer {
			continue
		}
		p := formats.Params{Container: string(container), Codec: string(meta.Video.Codec), SecondaryCodec: string(audio)}
		if playable(profile, models.MediaKindVideo, p) {
			m.logger.Debugf("remuxing %s into %s for profile %s", meta.Record.VideoContainer, container, profile.ID)
			return videoDescriptor(models.RuleTarget{Container: string(container)}, meta, transcodeID)
		}
	}

	return nil
}

// ResolveLiveTranscoding picks a streamable target for a live source when no
// explicit rule applied
func (m *Manager) ResolveLiveTranscoding(profileID string, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	if meta == nil {
		return nil
	}
	profile := m.Lookup(profileID)

	switch meta.Kind {
	case models.MediaKindVideo:
		for _, container := range liveVideoTargets {
			target := models.RuleTarget{
				Container:  string(container),
				VideoCodec: string(models.VideoCodecH264),
				AudioCodec: string(models.AudioCodecAAC),
			}
			p := formats.Params{Container: target.Container, Codec: target.VideoCodec, SecondaryCodec: target.AudioCodec}
			if playable(profile, models.MediaKindVideo, p) {
				return videoDescriptor(target, meta, transcodeID)
			}
		}
	case models.MediaKindAudio:
		p := formats.Params{Container: string(models.AudioContainerMP3), Codec: string(models.AudioCodecMP3)}
		if playable(profile, models.MediaKindAudio, p) {
			return audioDescriptor(models.RuleTarget{Container: p.Container}, meta, transcodeID)
		}
	}

	return nil
}

// ResolveSubtitleTranscoding applies the first subtitle rule matching a
// source that carries subtitles
func (m *Manager) ResolveSubtitleTranscoding(profileID string, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	if meta == nil || len(meta.Subtitles) == 0 {
		return nil
	}

	rule := m.match(profileID, models.MediaKindVideo, meta, false, true)
	if rule == nil {
		return nil
	}

	target := rule.Target
	if target.Subtitles == "" {
		target.Subtitles = string(models.SubtitlesBurn)
	}
	return videoDescriptor(target, meta, transcodeID)
}

func (m *Manager) match(profileID string, kind models.MediaKind, meta *models.MetadataContainer, live, subtitles bool) *models.TranscodeRule {
	if meta == nil {
		return nil
	}
	profile := m.Lookup(profileID)

	for i := range profile.Rules {
		rule := &profile.Rules[i]
		if models.ParseMediaKind(rule.Kind) != kind {
			continue
		}
		if rule.LiveOnly && !live {
			continue
		}
		if rule.SubtitlesOnly != subtitles {
			continue
		}
		if !anyOf(rule.Containers, containerOf(meta)) {
			continue
		}
		if len(rule.VideoCodecs) > 0 && (meta.Video == nil || !anyOf(rule.VideoCodecs, string(meta.Video.Codec))) {
			continue
		}
		if !anyOf(rule.AudioCodecs, string(sourceAudioCodec(meta))) {
			continue
		}
		return rule
	}

	return nil
}

// anyOf matches case-insensitively; an empty list matches everything
func anyOf(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), value) {
			return true
		}
	}
	return false
}

func containerOf(meta *models.MetadataContainer) string {
	switch meta.Kind {
	case models.MediaKindAudio:
		return string(meta.Record.AudioContainer)
	case models.MediaKindImage:
		return string(meta.Record.ImageContainer)
	default:
		return string(meta.Record.VideoContainer)
	}
}

func sourceAudioCodec(meta *models.MetadataContainer) models.AudioCodec {
	if a := meta.PrimaryAudio(); a != nil {
		return a.Codec
	}
	return ""
}

func playable(profile *models.ClientProfile, kind models.MediaKind, p formats.Params) bool {
	tags, err := formats.ResolveProfileTags(kind, p)
	if err != nil {
		return false
	}
	_, ok := formats.FindCompatibleMime(profile, tags)
	return ok
}
