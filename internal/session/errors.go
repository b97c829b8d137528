package session

import (
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/negotiation"
)

var (
	// ErrNotFound is returned for unknown session ids
	ErrNotFound = errors.New("session not found")

	// ErrBusy is returned when the transcoder is at capacity
	ErrBusy = errors.New("transcoder busy")

	// ErrMisconfigured is returned when a session has no usable descriptor.
	// The session is removed from the registry.
	ErrMisconfigured = negotiation.ErrMisconfigured

	// ErrMismatch is returned when the transcoder or resource provider
	// yields a handle or resource of the wrong kind
	ErrMismatch = errors.New("stream handle mismatch")

	// ErrNotFileBacked is returned for original-file streaming of a
	// resource that does not live on the local file system
	ErrNotFileBacked = fmt.Errorf("%w: resource is not file-system backed", ErrMismatch)

	// ErrStreamSuperseded is returned by reads of a stream handle after a
	// later start of the same transcode took over the shared output
	ErrStreamSuperseded = errors.New("stream superseded by a later start")

	// ErrNotTranscoded is returned when transcoded streaming is requested
	// for a session that delivers its source as is
	ErrNotTranscoded = fmt.Errorf("%w: session has nothing to transcode", ErrMismatch)
)
