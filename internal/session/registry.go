package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/resource"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// ResourceProvider resolves a media location to an accessor
type ResourceProvider interface {
	Lookup(ctx context.Context, location string) (resource.Accessor, error)
}

// Registry owns the active sessions. The id map is safe for concurrent
// use; each session's lifecycle is serialized by its own mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	transcoder Transcoder
	resources  ResourceProvider
	events     EventSink
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the registry logger
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEventSink sets the receiver of lifecycle events
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		if sink != nil {
			r.events = sink
		}
	}
}

// WithClock overrides the time source used for idle tracking
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(t Transcoder, resources ResourceProvider, opts ...Option) *Registry {
	r := &Registry{
		sessions:   make(map[string]*Session),
		transcoder: t,
		resources:  resources,
		events:     NopSink{},
		logger:     logging.NewNopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("session-registry")
	return r
}

// Add registers s under id, deleting any other session already registered
// there. Adding the session that is already registered under id only marks
// it used. A previously deleted session is registered again unstarted.
func (r *Registry) Add(ctx context.Context, id string, s *Session) {
	if cur, ok := r.Get(id); ok && cur == s {
		s.Touch(r.now())
		return
	}
	r.Delete(ctx, id)

	s.mu.Lock()
	if s.deleted {
		s.deleted = false
		s.started = false
		s.handle = nil
	}
	s.mu.Unlock()

	r.mu.Lock()
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	s.Touch(r.now())
	metrics.RecordSessionOperation("add", count)
	r.logger.LogSessionEvent(id, models.SessionEventAdded, map[string]interface{}{
		"media_id":   s.Media().ID,
		"profile_id": s.ProfileID(),
		"descriptor": descriptorKind(s),
		"mime":       s.Mime(),
	})
	r.emit(ctx, models.SessionEventAdded, s, "")
}

// Delete stops and removes the session registered under id. It reports
// false when id is unknown. Transcoder errors during the stop are logged
// and do not prevent removal.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	return r.remove(ctx, id, models.SessionEventDeleted, "")
}

// DeleteAll stops and removes every registered session. It returns the
// number of sessions removed.
func (r *Registry) DeleteAll(ctx context.Context) int {
	removed := 0
	for _, e := range r.entries() {
		if r.removeSession(ctx, e.id, e.session, models.SessionEventDeleted, "shutdown") {
			removed++
		}
	}
	return removed
}

// Update replaces the session under id. It is a delete followed by an add,
// so a concurrent Get may observe no session in between. Updating id with
// the session already registered there keeps it running.
func (r *Registry) Update(ctx context.Context, id string, s *Session) {
	if cur, ok := r.Get(id); !ok || cur != s {
		r.Delete(ctx, id)
	}
	r.Add(ctx, id, s)
}

// Get returns the session registered under id
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetAll returns every registered session ordered by the id it is
// registered under
func (r *Registry) GetAll() []*Session {
	entries := r.entries()
	out := make([]*Session, len(entries))
	for i, e := range entries {
		out[i] = e.session
	}
	return out
}

type entry struct {
	id      string
	session *Session
}

func (r *Registry) entries() []entry {
	r.mu.RLock()
	out := make([]entry, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, entry{id: id, session: s})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartStreaming starts the session's transcode and returns a resumable
// stream positioned at offset. Live sessions started at offset zero get
// the live broadcast handle.
//
// A session without a descriptor is removed and ErrMisconfigured returned.
// ErrBusy is returned without retrying when the transcoder is at capacity.
func (r *Registry) StartStreaming(ctx context.Context, id string, offset time.Duration) (TranscodingStream, error) {
	s, ok := r.Get(id)
	if !ok {
		metrics.RecordStreamStart("transcoded", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if s.Descriptor() == nil {
		r.remove(ctx, id, models.SessionEventRejected, "no transcoding descriptor")
		metrics.RecordStreamStart("transcoded", "misconfigured")
		return nil, fmt.Errorf("%w: %s", ErrMisconfigured, id)
	}

	ts, err := r.startTranscoded(ctx, s, offset)
	metrics.RecordStreamStart("transcoded", startOutcome(err))
	if err != nil {
		r.logger.WithSessionID(id).WithTranscodeID(s.TranscodeID()).WithError(err).Warn("failed to start streaming")
		return nil, err
	}

	r.emit(ctx, models.SessionEventStarted, s, "transcoded")
	return ts, nil
}

func (r *Registry) startTranscoded(ctx context.Context, s *Session, offset time.Duration) (TranscodingStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.ID())
	}
	if !s.IsTranscoded() {
		return nil, ErrNotTranscoded
	}

	s.releaseHandleLocked()
	s.Touch(r.now())

	d := s.Descriptor()
	if err := r.transcoder.StartTranscode(ctx, s.ClientID(), d); err != nil {
		if errors.Is(err, ErrBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to start transcode: %w", err)
	}

	// the transcode is running from here on; stop it on every failure
	abort := func(err error) (TranscodingStream, error) {
		if stopErr := r.transcoder.StopTranscode(ctx, s.ClientID(), d.TranscodeID); stopErr != nil {
			r.logger.LogTranscodeEvent(s.ClientID(), d.TranscodeID, "stop", stopErr)
		}
		return nil, err
	}

	if err := r.transcoder.BeginStreaming(ctx, s.ClientID(), d.TranscodeID); err != nil {
		return abort(fmt.Errorf("failed to begin streaming: %w", err))
	}

	var h StreamHandle
	var err error
	if s.Live() && offset <= 0 {
		h, err = r.transcoder.LiveStream(ctx, s.ClientID(), d.TranscodeID)
	} else {
		h, err = r.transcoder.MediaStream(ctx, s.ClientID(), d.TranscodeID, offset)
	}
	if err != nil {
		return abort(fmt.Errorf("failed to open stream: %w", err))
	}

	ts, ok := h.(TranscodingStream)
	if !ok {
		if h != nil {
			_ = h.Close()
		}
		return abort(fmt.Errorf("%w: transcoder returned a one-shot handle", ErrMismatch))
	}

	ts.SetInUse(true)
	s.handle = ts
	s.segmentDir = ts.SegmentDir()
	s.started = true
	return ts, nil
}

// StartOriginalFileStreaming returns a one-shot stream of the session's
// source file. Resources that are not on the local file system fail with
// ErrNotFileBacked.
func (r *Registry) StartOriginalFileStreaming(ctx context.Context, id string) (StreamHandle, error) {
	s, ok := r.Get(id)
	if !ok {
		metrics.RecordStreamStart("original", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	h, err := r.startOriginal(ctx, s)
	metrics.RecordStreamStart("original", startOutcome(err))
	if err != nil {
		r.logger.WithSessionID(id).WithError(err).Warn("failed to start original file streaming")
		return nil, err
	}

	r.emit(ctx, models.SessionEventStarted, s, "original")
	return h, nil
}

func (r *Registry) startOriginal(ctx context.Context, s *Session) (StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.ID())
	}

	s.releaseHandleLocked()
	s.Touch(r.now())

	acc, err := r.resources.Lookup(ctx, s.Media().Location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resource: %w", err)
	}
	file, ok := acc.(*resource.FileAccessor)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFileBacked, acc.Location())
	}

	h, err := r.transcoder.FileStream(ctx, file.LocalPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open file stream: %w", err)
	}

	s.handle = h
	s.segmentDir = ""
	s.started = true
	return h, nil
}

// StopStreaming stops the session's transcode and releases its handle. It
// is safe to call on a stopped session and reports false only when id is
// unknown.
func (r *Registry) StopStreaming(ctx context.Context, id string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	r.stopLocked(ctx, s)
	s.mu.Unlock()

	metrics.RecordSessionStop()
	r.emit(ctx, models.SessionEventStopped, s, "")
	return true
}

// Release gives up h once its reader is done with it. Resumable streams
// stay attached for a later start and the session becomes inactive, so
// PurgeIdle can reclaim it. It reports false when h is no longer the
// session's current handle.
func (r *Registry) Release(id string, h StreamHandle) bool {
	s, ok := r.Get(id)
	if !ok || h == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted || s.handle != h {
		return false
	}
	s.releaseHandleLocked()
	s.Touch(r.now())
	return true
}

// IsTranscoding reports whether the session's transcode is running
func (r *Registry) IsTranscoding(id string) bool {
	s, ok := r.Get(id)
	if !ok || !s.IsTranscoded() {
		return false
	}
	return r.transcoder.IsTranscodeRunning(s.ClientID(), s.TranscodeID())
}

// PurgeIdle deletes sessions that are not active and have not been used
// for longer than maxIdle. It returns the number of sessions removed.
func (r *Registry) PurgeIdle(ctx context.Context, maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	cutoff := r.now().Add(-maxIdle)
	purged := 0
	for _, e := range r.entries() {
		s := e.session
		if s.State() == StateActive || !s.LastUsed().Before(cutoff) {
			continue
		}
		if r.removeSession(ctx, e.id, s, models.SessionEventPurged, "idle") {
			purged++
		}
	}

	if purged > 0 {
		metrics.RecordSessionsPurged("idle", purged)
		r.logger.Infof("purged %d idle sessions", purged)
	}
	return purged
}

func (r *Registry) remove(ctx context.Context, id, event, detail string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	return r.removeSession(ctx, id, s, event, detail)
}

// removeSession stops s and unregisters it from id if it is still the
// session registered there. Sessions may be registered under an id other
// than their own.
func (r *Registry) removeSession(ctx context.Context, id string, s *Session, event, detail string) bool {
	s.mu.Lock()
	alive := !s.deleted
	if alive {
		r.stopLocked(ctx, s)
		s.handle = nil
		s.deleted = true
	}
	s.mu.Unlock()

	r.mu.Lock()
	unregistered := false
	if cur, ok := r.sessions[id]; ok && cur == s {
		delete(r.sessions, id)
		unregistered = true
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !alive && !unregistered {
		return false
	}

	metrics.RecordSessionOperation("delete", count)
	r.logger.LogSessionEvent(id, event, map[string]interface{}{"detail": detail})
	r.emit(ctx, event, s, detail)
	return true
}

func (r *Registry) stopLocked(ctx context.Context, s *Session) {
	if s.IsTranscoded() {
		if err := r.transcoder.StopTranscode(ctx, s.ClientID(), s.TranscodeID()); err != nil {
			r.logger.LogTranscodeEvent(s.ClientID(), s.TranscodeID(), "stop", err)
		}
	}
	s.releaseHandleLocked()
}

func (r *Registry) emit(ctx context.Context, event string, s *Session, detail string) {
	ev := models.SessionEvent{
		Type:        event,
		SessionID:   s.ID(),
		ClientID:    s.ClientID(),
		MediaID:     s.Media().ID,
		TranscodeID: s.TranscodeID(),
		Detail:      detail,
		Timestamp:   r.now().UTC(),
	}
	if err := r.events.Record(ctx, ev); err != nil {
		r.logger.WithSessionID(s.ID()).WithError(err).Warn("failed to record session event")
	}
}

func descriptorKind(s *Session) string {
	if d := s.Descriptor(); d != nil {
		return d.Kind.String()
	}
	return "missing"
}

func startOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	default:
		return "error"
	}
}
