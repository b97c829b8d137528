package session

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// State is the lifecycle position of a session
type State int

const (
	StateCreated    State = iota // no descriptor
	StateConfigured              // descriptor set, never streamed
	StateActive                  // handle in use
	StateInactive                // handle released
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Params are the immutable fields of a session
type Params struct {
	ID         string
	ClientID   string
	Media      models.MediaItem
	Live       bool
	ProfileID  string
	Descriptor *models.TranscodingDescriptor
	Metadata   *models.MetadataContainer
	Mime       string
}

// Session is one client's delivery of one media item. The negotiated
// fields never change; a re-negotiation produces a new Session that
// replaces this one in the registry. The handle and lifecycle flags are
// guarded by mu, which the registry holds for every start, stop and delete.
type Session struct {
	id         string
	clientID   string
	media      models.MediaItem
	live       bool
	profileID  string
	descriptor *models.TranscodingDescriptor
	metadata   *models.MetadataContainer
	mime       string
	createdAt  time.Time

	mu         sync.Mutex
	handle     StreamHandle
	started    bool
	deleted    bool
	segmentDir string

	lastUsed atomic.Int64 // unix nanoseconds

	subMu      sync.Mutex
	subStreams map[string]struct{}
}

// New creates a session
func New(p Params) *Session {
	s := &Session{
		id:         p.ID,
		clientID:   p.ClientID,
		media:      p.Media,
		live:       p.Live,
		profileID:  p.ProfileID,
		descriptor: p.Descriptor,
		metadata:   p.Metadata,
		mime:       p.Mime,
		createdAt:  time.Now(),
		subStreams: make(map[string]struct{}),
	}
	s.lastUsed.Store(s.createdAt.UnixNano())
	return s
}

func (s *Session) ID() string                                { return s.id }
func (s *Session) ClientID() string                          { return s.clientID }
func (s *Session) Media() models.MediaItem                   { return s.media }
func (s *Session) Live() bool                                { return s.live }
func (s *Session) ProfileID() string                         { return s.profileID }
func (s *Session) Descriptor() *models.TranscodingDescriptor { return s.descriptor }
func (s *Session) Metadata() *models.MetadataContainer       { return s.metadata }
func (s *Session) Mime() string                              { return s.mime }
func (s *Session) CreatedAt() time.Time                      { return s.createdAt }

// TranscodeID returns the descriptor's transcode id, or ""
func (s *Session) TranscodeID() string {
	if s.descriptor == nil {
		return ""
	}
	return s.descriptor.TranscodeID
}

// IsTranscoded reports whether delivery goes through the transcoder
func (s *Session) IsTranscoded() bool {
	return s.descriptor != nil && s.descriptor.Kind != models.DescriptorNone
}

// IsStreamable reports whether negotiation produced a deliverable format.
// A transcoded session without a MIME type is undeliverable.
func (s *Session) IsStreamable() bool {
	return s.descriptor != nil && s.mime != ""
}

// SegmentDir returns the segment directory of the current transcode
func (s *Session) SegmentDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmentDir
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.deleted:
		return StateDeleted
	case s.handle != nil && handleInUse(s.handle):
		return StateActive
	case s.started:
		return StateInactive
	case s.descriptor != nil:
		return StateConfigured
	default:
		return StateCreated
	}
}

func handleInUse(h StreamHandle) bool {
	if ts, ok := h.(TranscodingStream); ok {
		return ts.InUse()
	}
	return true
}

// LastUsed returns the last time the session was touched
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Touch records use of the session
func (s *Session) Touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// AddSubStream registers an independent sub-stream token, such as an image
// preview request. It returns false when the token is already registered.
func (s *Session) AddSubStream(token string) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subStreams[token]; ok {
		return false
	}
	s.subStreams[token] = struct{}{}
	return true
}

// RemoveSubStream unregisters a sub-stream token
func (s *Session) RemoveSubStream(token string) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subStreams[token]; !ok {
		return false
	}
	delete(s.subStreams, token)
	return true
}

// HasSubStream reports whether a token is registered
func (s *Session) HasSubStream(token string) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	_, ok := s.subStreams[token]
	return ok
}

// SubStreams returns the registered tokens in sorted order
func (s *Session) SubStreams() []string {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]string, 0, len(s.subStreams))
	for token := range s.subStreams {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// releaseHandleLocked gives up the current handle. Resumable handles stay
// referenced so a later start can observe them; one-shot handles are
// closed and cleared.
func (s *Session) releaseHandleLocked() {
	if s.handle == nil {
		return
	}
	if !release(s.handle) {
		s.handle = nil
	}
}
