package streaming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/negotiation"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/session"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/tracing"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidRequest is returned for requests missing the media reference
var ErrInvalidRequest = errors.New("invalid session request")

// Analyzer extracts source metadata from a media item
type Analyzer interface {
	Analyze(ctx context.Context, item models.MediaItem) (*models.MetadataContainer, error)
}

// MetadataCache stores analyzer results between sessions
type MetadataCache interface {
	GetMetadata(ctx context.Context, item models.MediaItem) (*models.MetadataContainer, error)
	SetMetadata(ctx context.Context, item models.MediaItem, meta *models.MetadataContainer) error
}

// ProfileSource resolves client profile ids, falling back to a default
type ProfileSource interface {
	Lookup(id string) *models.ClientProfile
}

// CreateRequest describes a new delivery. An empty SessionID gets a random id.
type CreateRequest struct {
	SessionID string
	ClientID  string
	ProfileID string
	Media     models.MediaItem
	Live      bool
}

// Service turns client requests into negotiated sessions
type Service struct {
	analyzer Analyzer
	cache    MetadataCache
	profiles ProfileSource
	engine   *negotiation.Engine
	registry *session.Registry
	logger   *logging.Logger

	analyses singleflight.Group
}

// Option configures a Service
type Option func(*Service)

// WithCache enables the analyzer result cache
func WithCache(c MetadataCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithLogger sets the service logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a streaming service
func NewService(analyzer Analyzer, profiles ProfileSource, engine *negotiation.Engine, registry *session.Registry, opts ...Option) *Service {
	s := &Service{
		analyzer: analyzer,
		profiles: profiles,
		engine:   engine,
		registry: registry,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("streaming")
	return s
}

// Registry returns the session registry backing the service
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Analyze returns the metadata of item from the cache, or runs the
// analyzer once for all concurrent callers asking about the same item
func (s *Service) Analyze(ctx context.Context, item models.MediaItem) (*models.MetadataContainer, error) {
	if s.cache != nil {
		meta, err := s.cache.GetMetadata(ctx, item)
		if err != nil {
			s.logger.WithField("media_id", item.ID).WithError(err).Warn("metadata cache read failed")
		} else if meta != nil {
			return meta, nil
		}
	}

	key := item.ID + "\x00" + item.Location
	ch := s.analyses.DoChan(key, func() (interface{}, error) {
		meta, err := s.analyzer.Analyze(context.WithoutCancel(ctx), item)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetMetadata(context.WithoutCancel(ctx), item, meta); err != nil {
				s.logger.WithField("media_id", item.ID).WithError(err).Warn("metadata cache write failed")
			}
		}
		return meta, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// callers share the analyzed value; hand each its own copy
		return res.Val.(*models.MetadataContainer).Clone(), nil
	}
}

// CreateSession analyzes the media, negotiates a delivery for the client
// and registers the session. The session is registered even when the
// negotiation fails; the returned error then explains why it cannot be
// streamed, and the session is nil only for invalid requests and
// cancelled contexts.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (*session.Session, error) {
	span, ctx := tracing.StartSpan(ctx, "streaming.CreateSession")
	defer tracing.FinishSpan(span)

	if req.Media.ID == "" || req.Media.Location == "" {
		return nil, fmt.Errorf("%w: media id and location are required", ErrInvalidRequest)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	tracing.SetTag(span, "session_id", req.SessionID)
	tracing.SetTag(span, "media_id", req.Media.ID)

	sess, err := s.negotiate(ctx, req)
	if sess == nil {
		tracing.LogError(span, err)
		return nil, err
	}

	s.registry.Add(ctx, req.SessionID, sess)
	if err != nil {
		tracing.LogError(span, err)
	}
	return sess, err
}

// UpdateProfile re-negotiates an existing session for another client
// profile and replaces it in the registry
func (s *Service) UpdateProfile(ctx context.Context, id, profileID string) (*session.Session, error) {
	span, ctx := tracing.StartSpan(ctx, "streaming.UpdateProfile")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "session_id", id)

	current, ok := s.registry.Get(id)
	if !ok {
		return nil, session.ErrNotFound
	}

	sess, err := s.negotiate(ctx, CreateRequest{
		SessionID: id,
		ClientID:  current.ClientID(),
		ProfileID: profileID,
		Media:     current.Media(),
		Live:      current.Live(),
	})
	if sess == nil {
		tracing.LogError(span, err)
		return nil, err
	}

	s.registry.Update(ctx, id, sess)
	if err != nil {
		tracing.LogError(span, err)
	}
	return sess, err
}

func (s *Service) negotiate(ctx context.Context, req CreateRequest) (*session.Session, error) {
	logger := s.logger.WithSessionID(req.SessionID).WithClientID(req.ClientID)

	source, analyzeErr := s.Analyze(ctx, req.Media)
	if analyzeErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithField("media_id", req.Media.ID).WithError(analyzeErr).Warn("media analysis failed")
	}

	profile := s.profiles.Lookup(req.ProfileID)
	profileID := req.ProfileID
	if profile != nil {
		profileID = profile.ID
	}

	span, _ := tracing.StartSpan(ctx, "negotiation.Negotiate")
	out, err := s.engine.Negotiate(negotiation.Input{
		MediaID: req.Media.ID,
		Profile: profile,
		Source:  source,
		Live:    req.Live,
	})
	tracing.SetTag(span, "profile_id", profileID)
	if out.Descriptor != nil {
		tracing.SetTag(span, "descriptor", out.Descriptor.Kind.String())
	}
	tracing.LogError(span, err)
	tracing.FinishSpan(span)

	if analyzeErr != nil {
		err = fmt.Errorf("%w: analysis failed: %v", negotiation.ErrMisconfigured, analyzeErr)
	}

	sess := session.New(session.Params{
		ID:         req.SessionID,
		ClientID:   req.ClientID,
		Media:      req.Media,
		Live:       req.Live,
		ProfileID:  profileID,
		Descriptor: out.Descriptor,
		Metadata:   out.Metadata,
		Mime:       out.Mime,
	})
	return sess, err
}

// OpenSubStream registers a new sub-stream token, used by image previews
// served alongside the main delivery
func (s *Service) OpenSubStream(id string) (string, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return "", session.ErrNotFound
	}

	token := uuid.NewString()
	sess.AddSubStream(token)
	sess.Touch(time.Now())
	return token, nil
}

// CloseSubStream drops a sub-stream token
func (s *Service) CloseSubStream(id, token string) bool {
	sess, ok := s.registry.Get(id)
	if !ok {
		return false
	}
	return sess.RemoveSubStream(token)
}

// ValidSubStream reports whether token belongs to the session
func (s *Service) ValidSubStream(id, token string) bool {
	sess, ok := s.registry.Get(id)
	return ok && sess.HasSubStream(token)
}
