package negotiation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

type mockRules struct {
	mock.Mock
}

func descriptorArg(args mock.Arguments) *models.TranscodingDescriptor {
	if d, ok := args.Get(0).(*models.TranscodingDescriptor); ok {
		return d
	}
	return nil
}

func (m *mockRules) ResolveAudioTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor {
	return descriptorArg(m.Called(profileID, meta, live, transcodeID))
}

func (m *mockRules) ResolveImageTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor {
	return descriptorArg(m.Called(profileID, meta, live, transcodeID))
}

func (m *mockRules) ResolveVideoTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor {
	return descriptorArg(m.Called(profileID, meta, live, transcodeID))
}

func (m *mockRules) ResolveLiveTranscoding(profileID string, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	return descriptorArg(m.Called(profileID, meta, transcodeID))
}

func (m *mockRules) ResolveSubtitleTranscoding(profileID string, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor {
	return descriptorArg(m.Called(profileID, meta, transcodeID))
}

// targetProjector projects a descriptor by copying its target fields
type targetProjector struct{}

func (targetProjector) ProjectMetadata(d *models.TranscodingDescriptor) *models.MetadataContainer {
	meta := &models.MetadataContainer{
		Record: models.MediaRecord{
			Location:       d.Input,
			AudioContainer: d.Target.AudioContainer,
			ImageContainer: d.Target.ImageContainer,
			VideoContainer: d.Target.VideoContainer,
			Bitrate:        d.Target.Bitrate,
			Duration:       d.Target.Duration,
		},
	}
	switch d.Kind {
	case models.DescriptorVideo:
		meta.Kind = models.MediaKindVideo
		meta.Video = &models.VideoStream{Codec: d.Target.VideoCodec, Width: d.Target.Width, Height: d.Target.Height}
	case models.DescriptorImage:
		meta.Kind = models.MediaKindImage
		meta.Image = &models.ImageStream{Width: d.Target.Width, Height: d.Target.Height}
	case models.DescriptorAudio:
		meta.Kind = models.MediaKindAudio
	}
	if d.Target.AudioCodec != "" {
		meta.Audio = []models.AudioStream{{Codec: d.Target.AudioCodec, Channels: d.Target.Channels, Frequency: d.Target.Frequency}}
	}
	return meta
}

func mp4Source() *models.MetadataContainer {
	return &models.MetadataContainer{
		Kind: models.MediaKindVideo,
		Record: models.MediaRecord{
			Location:       "/media/movie.mp4",
			VideoContainer: models.VideoContainerMP4,
			Bitrate:        4000000,
			Duration:       120,
		},
		Video: &models.VideoStream{Codec: models.VideoCodecH264, Width: 1920, Height: 1080},
		Audio: []models.AudioStream{{Codec: models.AudioCodecAAC, Channels: 2, Frequency: 48000}},
	}
}

func tsOnlyProfile() *models.ClientProfile {
	return &models.ClientProfile{
		ID: "ts-box",
		Mappings: []models.MimeMapping{
			{Tag: formats.TagAVCTS, Mime: "video/mp2t"},
			{Tag: formats.TagHLS, Mime: "application/x-mpegURL"},
			{Tag: formats.TagMP3, Mime: "audio/mpeg"},
		},
	}
}

func videoDescriptor(source *models.MetadataContainer, container models.VideoContainer, subtitles models.SubtitlePolicy) *models.TranscodingDescriptor {
	target := models.SpecFromMetadata(source)
	target.VideoContainer = container
	return &models.TranscodingDescriptor{
		Kind:      models.DescriptorVideo,
		Source:    models.SpecFromMetadata(source),
		Target:    target,
		Subtitles: subtitles,
	}
}

func enabled() Options {
	return Options{TranscodingEnabled: true}
}

func TestNegotiate_Misconfigured(t *testing.T) {
	unready := mp4Source()
	unready.Video.Codec = ""

	tests := []struct {
		name   string
		source *models.MetadataContainer
	}{
		{"no source", nil},
		{"unclassified", &models.MetadataContainer{Record: models.MediaRecord{Location: "/media/blob"}}},
		{"not ready", unready},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := &mockRules{}
			engine := NewEngine(rules, targetProjector{}, enabled(), nil)

			out, err := engine.Negotiate(Input{MediaID: "m1", Source: tt.source, Profile: tsOnlyProfile()})
			require.ErrorIs(t, err, ErrMisconfigured)
			require.NotNil(t, out)
			assert.Nil(t, out.Descriptor)
			assert.Nil(t, out.Metadata)
			assert.False(t, out.Transcoded())
			rules.AssertNotCalled(t, "ResolveVideoTranscoding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestNegotiate_TranscodingDisabled(t *testing.T) {
	rules := &mockRules{}
	engine := NewEngine(rules, targetProjector{}, Options{TranscodingEnabled: false}, nil)
	source := mp4Source()

	out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: formats.DefaultProfile()})
	require.NoError(t, err)

	assert.Equal(t, models.DescriptorNone, out.Descriptor.Kind)
	assert.False(t, out.Transcoded())
	assert.Equal(t, "video/mp4", out.Mime)
	assert.Equal(t, []string{formats.TagAVCMP4}, out.Tags)
	assert.Equal(t, source.Record.VideoContainer, out.Metadata.Record.VideoContainer)
	assert.NotSame(t, source, out.Metadata)
	rules.AssertExpectations(t)
}

func TestNegotiate_OnDemandVideoRule(t *testing.T) {
	source := mp4Source()
	profile := tsOnlyProfile()
	wantID := TranscodeID("m1", profile.ID, false)

	rules := &mockRules{}
	rules.On("ResolveVideoTranscoding", profile.ID, source, false, wantID).
		Return(videoDescriptor(source, models.VideoContainerMPEGTS, models.SubtitlesNone))

	engine := NewEngine(rules, targetProjector{}, enabled(), nil)
	out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: profile})
	require.NoError(t, err)

	assert.True(t, out.Transcoded())
	assert.Equal(t, wantID, out.Descriptor.TranscodeID)
	assert.Equal(t, "/media/movie.mp4", out.Descriptor.Input)
	assert.False(t, out.Descriptor.Segmented)
	assert.Equal(t, "video/mp2t", out.Mime)
	assert.Equal(t, "video/mp2t", out.Metadata.Record.MimeType)
	rules.AssertExpectations(t)
}

func TestNegotiate_VideoOverrides(t *testing.T) {
	tests := []struct {
		name          string
		burnAllowed   bool
		policy        models.SubtitlePolicy
		wantSubtitles models.SubtitlePolicy
	}{
		{"burn-in forbidden", false, models.SubtitlesBurn, models.SubtitlesNone},
		{"burn-in allowed", true, models.SubtitlesBurn, models.SubtitlesBurn},
		{"copy untouched", false, models.SubtitlesCopy, models.SubtitlesCopy},
		{"unset becomes none", true, "", models.SubtitlesNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := mp4Source()
			rules := &mockRules{}
			rules.On("ResolveVideoTranscoding", mock.Anything, source, false, mock.Anything).
				Return(videoDescriptor(source, models.VideoContainerHLS, tt.policy))

			engine := NewEngine(rules, targetProjector{}, Options{TranscodingEnabled: true, BurnInSubtitlesAllowed: tt.burnAllowed}, nil)
			out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: tsOnlyProfile()})
			require.NoError(t, err)

			assert.True(t, out.Descriptor.Segmented)
			assert.Equal(t, tt.wantSubtitles, out.Descriptor.Subtitles)
			assert.Equal(t, "application/x-mpegURL", out.Mime)
		})
	}
}

func TestNegotiate_LiveFallback(t *testing.T) {
	source := mp4Source()
	source.Record.VideoContainer = models.VideoContainerMPEGTS

	rules := &mockRules{}
	rules.On("ResolveVideoTranscoding", mock.Anything, source, true, mock.Anything).Return(nil)
	rules.On("ResolveLiveTranscoding", mock.Anything, source, mock.Anything).
		Return(videoDescriptor(source, models.VideoContainerHLS, models.SubtitlesBurn))

	engine := NewEngine(rules, targetProjector{}, enabled(), nil)
	out, err := engine.Negotiate(Input{MediaID: "channel-1", Source: source, Profile: tsOnlyProfile(), Live: true})
	require.NoError(t, err)

	assert.True(t, out.Descriptor.Segmented)
	assert.Equal(t, models.SubtitlesNone, out.Descriptor.Subtitles)
	assert.NotEmpty(t, out.Descriptor.TranscodeID)
	rules.AssertNotCalled(t, "ResolveSubtitleTranscoding", mock.Anything, mock.Anything, mock.Anything)
	rules.AssertExpectations(t)
}

func TestNegotiate_SubtitleFallback(t *testing.T) {
	source := mp4Source()
	source.Subtitles = []models.SubtitleStream{{Codec: "subrip", Embedded: true}}

	rules := &mockRules{}
	rules.On("ResolveVideoTranscoding", mock.Anything, source, false, mock.Anything).Return(nil)
	rules.On("ResolveSubtitleTranscoding", mock.Anything, source, mock.Anything).
		Return(videoDescriptor(source, models.VideoContainerMPEGTS, models.SubtitlesBurn))

	engine := NewEngine(rules, targetProjector{}, Options{TranscodingEnabled: true, BurnInSubtitlesAllowed: true}, nil)
	out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: tsOnlyProfile()})
	require.NoError(t, err)

	assert.Equal(t, models.SubtitlesBurn, out.Descriptor.Subtitles)
	rules.AssertNotCalled(t, "ResolveLiveTranscoding", mock.Anything, mock.Anything, mock.Anything)
	rules.AssertExpectations(t)
}

func TestNegotiate_NoVideoTarget(t *testing.T) {
	source := mp4Source()

	rules := &mockRules{}
	rules.On("ResolveVideoTranscoding", mock.Anything, mock.Anything, false, mock.Anything).Return(nil)
	rules.On("ResolveSubtitleTranscoding", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	engine := NewEngine(rules, targetProjector{}, enabled(), nil)

	t.Run("undeliverable source is misconfigured", func(t *testing.T) {
		out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: tsOnlyProfile()})
		require.ErrorIs(t, err, ErrMisconfigured)
		assert.Nil(t, out.Descriptor)
	})

	t.Run("deliverable source passes through", func(t *testing.T) {
		out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: formats.DefaultProfile()})
		require.NoError(t, err)
		assert.Equal(t, models.DescriptorNone, out.Descriptor.Kind)
		assert.Equal(t, "video/mp4", out.Mime)
	})
}

func TestNegotiate_AudioWithoutRuleIsUndeliverable(t *testing.T) {
	source := &models.MetadataContainer{
		Kind:   models.MediaKindAudio,
		Record: models.MediaRecord{Location: "/media/song.flac", AudioContainer: models.AudioContainerFLAC},
		Audio:  []models.AudioStream{{Codec: models.AudioCodecFLAC, Channels: 2, Frequency: 44100}},
	}

	rules := &mockRules{}
	rules.On("ResolveAudioTranscoding", mock.Anything, source, false, mock.Anything).Return(nil)

	engine := NewEngine(rules, targetProjector{}, enabled(), nil)
	out, err := engine.Negotiate(Input{MediaID: "song", Source: source, Profile: tsOnlyProfile()})

	require.ErrorIs(t, err, ErrNoCompatibleMime)
	require.NotNil(t, out.Descriptor)
	assert.Equal(t, models.DescriptorNone, out.Descriptor.Kind)
	assert.Empty(t, out.Mime)
	assert.Equal(t, []string{formats.TagFLAC}, out.Tags)
}

func TestNegotiate_UnsupportedProjectionKeepsDescriptor(t *testing.T) {
	source := mp4Source()
	source.Record.VideoContainer = models.VideoContainerASF
	source.Video.Codec = models.VideoCodecVC1

	d := videoDescriptor(source, models.VideoContainerHLS, models.SubtitlesNone)
	rules := &mockRules{}
	rules.On("ResolveVideoTranscoding", mock.Anything, source, false, mock.Anything).Return(d)

	engine := NewEngine(rules, targetProjector{}, enabled(), nil)
	out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: tsOnlyProfile()})

	require.Error(t, err)
	assert.True(t, errors.Is(err, formats.ErrUnsupportedFormat))
	assert.True(t, out.Transcoded())
	assert.NotNil(t, out.Metadata)
	assert.Empty(t, out.Mime)
}

func TestNegotiate_SizeEstimation(t *testing.T) {
	source := mp4Source()
	profile := tsOnlyProfile()
	profile.EstimateSize = true

	d := videoDescriptor(source, models.VideoContainerMPEGTS, models.SubtitlesNone)
	d.Target.Bitrate = 2000000
	d.Target.Duration = 60

	rules := &mockRules{}
	rules.On("ResolveVideoTranscoding", mock.Anything, source, false, mock.Anything).Return(d)

	engine := NewEngine(rules, targetProjector{}, enabled(), nil)
	out, err := engine.Negotiate(Input{MediaID: "m1", Source: source, Profile: profile})
	require.NoError(t, err)
	assert.Equal(t, int64(15000000), out.Metadata.Record.Size)
}

func TestTranscodeID(t *testing.T) {
	a := TranscodeID("m1", "p1", false)
	assert.Equal(t, a, TranscodeID("m1", "p1", false))
	assert.NotEqual(t, a, TranscodeID("m1", "p2", false))
	assert.NotEqual(t, TranscodeID("m1", "p1", true), TranscodeID("m1", "p1", true))
}

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		bitrate  int64
		duration float64
		want     int64
	}{
		{8000, 10, 10000},
		{0, 10, 0},
		{8000, 0, 0},
		{-1, 10, 0},
	}
	for _, tt := range tests {
		if got := EstimateSize(tt.bitrate, tt.duration); got != tt.want {
			t.Errorf("EstimateSize(%d, %v) = %d, want %d", tt.bitrate, tt.duration, got, tt.want)
		}
	}
}
