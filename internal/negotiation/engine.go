package negotiation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

var (
	// ErrMisconfigured means the source could not be classified or analyzed
	// well enough to produce a usable descriptor.
	ErrMisconfigured = errors.New("session misconfigured")

	// ErrNoCompatibleMime means none of the projection's tags is mapped by
	// the client profile. The descriptor is kept.
	ErrNoCompatibleMime = errors.New("no compatible mime type")
)

// RuleManager resolves transcoding descriptors from a client's rules. A nil
// descriptor means no rule applies.
type RuleManager interface {
	ResolveAudioTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor
	ResolveImageTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor
	ResolveVideoTranscoding(profileID string, meta *models.MetadataContainer, live bool, transcodeID string) *models.TranscodingDescriptor
	ResolveLiveTranscoding(profileID string, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor
	ResolveSubtitleTranscoding(profileID string, meta *models.MetadataContainer, transcodeID string) *models.TranscodingDescriptor
}

// Projector derives the metadata a descriptor's output will have
type Projector interface {
	ProjectMetadata(d *models.TranscodingDescriptor) *models.MetadataContainer
}

// Options are the deployment switches consulted by the engine
type Options struct {
	TranscodingEnabled     bool
	BurnInSubtitlesAllowed bool
}

// Input is one negotiation request
type Input struct {
	MediaID string
	Profile *models.ClientProfile
	Source  *models.MetadataContainer
	Live    bool
}

// Outcome is what gets attached to a session. Descriptor and Metadata are
// nil when the source is misconfigured.
type Outcome struct {
	Descriptor *models.TranscodingDescriptor
	Metadata   *models.MetadataContainer
	Mime       string
	Tags       []string
}

// Transcoded reports whether the outcome requires a transcoder
func (o *Outcome) Transcoded() bool {
	return o != nil && o.Descriptor != nil && o.Descriptor.Kind != models.DescriptorNone
}

// Engine decides whether and how a source is transcoded for a client
type Engine struct {
	rules     RuleManager
	projector Projector
	opts      Options
	logger    *logging.Logger
}

// NewEngine creates a decision engine
func NewEngine(rules RuleManager, projector Projector, opts Options, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		rules:     rules,
		projector: projector,
		opts:      opts,
		logger:    logger.WithComponent("negotiation"),
	}
}

// Negotiate runs the decision for one source and client. The returned
// outcome is never nil. On ErrMisconfigured it is empty; on a tag or MIME
// failure it still carries the descriptor and projection.
func (e *Engine) Negotiate(in Input) (*Outcome, error) {
	out, err := e.negotiate(in)

	profileID := ""
	if in.Profile != nil {
		profileID = in.Profile.ID
	}
	kind := models.DescriptorNone.String()
	if out.Descriptor != nil {
		kind = out.Descriptor.Kind.String()
	}
	e.logger.LogNegotiation(in.MediaID, profileID, kind, out.Mime, err)
	metrics.RecordNegotiation(kind, negotiationResult(err))

	return out, err
}

func (e *Engine) negotiate(in Input) (*Outcome, error) {
	source := in.Source
	if source == nil || source.Kind == models.MediaKindUnknown || !source.ReadyForTranscoding() {
		return &Outcome{}, ErrMisconfigured
	}

	profile := in.Profile
	if profile == nil {
		profile = formats.DefaultProfile()
	}

	var d *models.TranscodingDescriptor
	if e.opts.TranscodingEnabled {
		d = e.resolveDescriptor(profile.ID, in.MediaID, source, in.Live)

		if d == nil && source.Kind == models.MediaKindVideo && !deliverable(profile, source) {
			return &Outcome{}, fmt.Errorf("%w: no transcoding target for video %q", ErrMisconfigured, in.MediaID)
		}
	}

	if d == nil {
		d = &models.TranscodingDescriptor{
			Kind:   models.DescriptorNone,
			Input:  source.Record.Location,
			Source: models.SpecFromMetadata(source),
			Target: models.SpecFromMetadata(source),
		}
	}
	if d.Input == "" {
		d.Input = source.Record.Location
	}

	out := &Outcome{Descriptor: d}

	if d.Kind != models.DescriptorNone && e.projector != nil {
		out.Metadata = e.projector.ProjectMetadata(d)
	}
	if out.Metadata == nil {
		out.Metadata = source.Clone()
	}
	if profile.EstimateSize && (d.Kind != models.DescriptorNone || out.Metadata.Record.Size == 0) {
		if size := EstimateSize(out.Metadata.Record.Bitrate, out.Metadata.Record.Duration); size > 0 {
			out.Metadata.Record.Size = size
		}
	}

	tags, err := formats.TagsForMetadata(out.Metadata)
	if err != nil {
		return out, err
	}
	out.Tags = tags

	mime, ok := formats.FindCompatibleMime(profile, tags)
	if !ok {
		return out, fmt.Errorf("%w: profile %q, tags %v", ErrNoCompatibleMime, profile.ID, tags)
	}
	out.Mime = mime
	out.Metadata.Record.MimeType = mime

	return out, nil
}

func (e *Engine) resolveDescriptor(profileID, mediaID string, source *models.MetadataContainer, live bool) *models.TranscodingDescriptor {
	if e.rules == nil {
		return nil
	}

	transcodeID := TranscodeID(mediaID, profileID, live)

	var d *models.TranscodingDescriptor
	switch source.Kind {
	case models.MediaKindAudio:
		d = e.rules.ResolveAudioTranscoding(profileID, source, live, transcodeID)
	case models.MediaKindImage:
		d = e.rules.ResolveImageTranscoding(profileID, source, live, transcodeID)
	case models.MediaKindVideo:
		d = e.rules.ResolveVideoTranscoding(profileID, source, live, transcodeID)
	}

	if d == nil {
		if live {
			d = e.rules.ResolveLiveTranscoding(profileID, source, transcodeID)
		} else if source.Kind == models.MediaKindVideo {
			d = e.rules.ResolveSubtitleTranscoding(profileID, source, transcodeID)
		}
	}
	if d == nil {
		return nil
	}

	if d.TranscodeID == "" {
		d.TranscodeID = transcodeID
	}
	if d.Kind == models.DescriptorVideo {
		e.applyVideoOverrides(d)
	}
	return d
}

func (e *Engine) applyVideoOverrides(d *models.TranscodingDescriptor) {
	if d.Target.VideoContainer == models.VideoContainerHLS {
		d.Segmented = true
	}
	if !e.opts.BurnInSubtitlesAllowed && d.Subtitles == models.SubtitlesBurn {
		d.Subtitles = models.SubtitlesNone
	}
	if d.Subtitles == "" {
		d.Subtitles = models.SubtitlesNone
	}
}

// TranscodeID is deterministic for on-demand sources so repeated requests
// share a transcode; live sources always get a fresh one.
func TranscodeID(mediaID, profileID string, live bool) string {
	if live {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(mediaID+":"+profileID)).String()
}

// EstimateSize returns the byte size of a stream from its bitrate in bits
// per second and duration in seconds, or 0 when either is unknown.
func EstimateSize(bitrate int64, duration float64) int64 {
	if bitrate <= 0 || duration <= 0 {
		return 0
	}
	return int64(float64(bitrate) * duration / 8)
}

func deliverable(profile *models.ClientProfile, source *models.MetadataContainer) bool {
	tags, err := formats.TagsForMetadata(source)
	if err != nil {
		return false
	}
	_, ok := formats.FindCompatibleMime(profile, tags)
	return ok
}

func negotiationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, formats.ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, ErrNoCompatibleMime):
		return "no_mime"
	default:
		return "error"
	}
}
