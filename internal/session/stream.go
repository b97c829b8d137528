package session

import (
	"context"
	"io"
	"time"

	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// StreamHandle is a readable stream produced by the transcoder runtime.
// Handles that only implement this interface are one-shot: they are closed
// when the session releases them.
type StreamHandle interface {
	io.ReadCloser
}

// TranscodingStream is a resumable handle backed by a transcode. Releasing
// it marks it not in use instead of closing it.
type TranscodingStream interface {
	StreamHandle
	InUse() bool
	SetInUse(inUse bool)
	SegmentDir() string
}

// Transcoder is the runtime that runs transcodes and hands out streams
type Transcoder interface {
	// StartTranscode starts the transcode described by d for a client. It
	// returns ErrBusy when no capacity is left and is a no-op when the
	// transcode is already running.
	StartTranscode(ctx context.Context, clientID string, d *models.TranscodingDescriptor) error
	StopTranscode(ctx context.Context, clientID, transcodeID string) error
	IsTranscodeRunning(clientID, transcodeID string) bool

	// BeginStreaming blocks until the transcode has produced output
	BeginStreaming(ctx context.Context, clientID, transcodeID string) error
	MediaStream(ctx context.Context, clientID, transcodeID string, offset time.Duration) (StreamHandle, error)
	LiveStream(ctx context.Context, clientID, transcodeID string) (StreamHandle, error)
	FileStream(ctx context.Context, path string) (StreamHandle, error)
}

// release gives up a handle: resumable handles are marked not in use and
// kept, one-shot handles are closed. It reports whether the handle is kept.
func release(h StreamHandle) bool {
	if h == nil {
		return false
	}
	if ts, ok := h.(TranscodingStream); ok {
		ts.SetInUse(false)
		return true
	}
	_ = h.Close()
	return false
}
