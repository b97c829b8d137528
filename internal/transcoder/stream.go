package transcoder

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/session"
)

// TranscodedStream reads the output of a running transcode. Progressive
// output is followed while ffmpeg writes it; segmented output is read as a
// playlist snapshot and its segments are served from SegmentDir.
//
// A stream is shared by everyone streaming the same transcode and survives
// being released by a session; it is closed when the transcode stops.
type TranscodedStream struct {
	path       string
	segmentDir string
	follow     bool
	done       <-chan struct{}
	poll       time.Duration

	inUse atomic.Bool

	mu           sync.Mutex
	file         *os.File
	offset       int64
	startSegment int
	gen          uint64
	closed       bool
	closing      chan struct{}
}

func newTranscodedStream(path, segmentDir string, done <-chan struct{}, poll time.Duration) *TranscodedStream {
	return &TranscodedStream{
		path:       path,
		segmentDir: segmentDir,
		follow:     segmentDir == "",
		done:       done,
		poll:       poll,
		closing:    make(chan struct{}),
	}
}

// InUse reports whether a session currently holds the stream
func (s *TranscodedStream) InUse() bool { return s.inUse.Load() }

// SetInUse marks the stream held or released
func (s *TranscodedStream) SetInUse(inUse bool) { s.inUse.Store(inUse) }

// SegmentDir returns the segment directory, or "" for progressive output
func (s *TranscodedStream) SegmentDir() string { return s.segmentDir }

// Path returns the file the stream reads
func (s *TranscodedStream) Path() string { return s.path }

// StartSegment returns the first segment a client should request. A
// negative value means the live edge.
func (s *TranscodedStream) StartSegment() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startSegment
}

// Read reads the output. For progressive output it blocks at the end of
// the written data until ffmpeg writes more or exits.
func (s *TranscodedStream) Read(p []byte) (int, error) {
	return s.read(p, 0, false)
}

// read reads for a cursor of generation gen when checkGen is set. A
// reposition by a later start supersedes every older cursor.
func (s *TranscodedStream) read(p []byte, gen uint64, checkGen bool) (int, error) {
	for {
		s.mu.Lock()
		n, err := s.readLocked(p, gen, checkGen)
		s.mu.Unlock()

		if n > 0 || err != io.EOF || !s.follow {
			return n, err
		}

		select {
		case <-s.done:
			// drain whatever was flushed after the last read
			s.mu.Lock()
			n, err = s.readLocked(p, gen, checkGen)
			s.mu.Unlock()
			return n, err
		case <-s.closing:
			return 0, os.ErrClosed
		case <-time.After(s.poll):
		}
	}
}

func (s *TranscodedStream) readLocked(p []byte, gen uint64, checkGen bool) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	if checkGen && gen != s.gen {
		return 0, session.ErrStreamSuperseded
	}
	if s.file == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return 0, err
		}
		if s.offset > 0 {
			if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
				f.Close()
				return 0, err
			}
		}
		s.file = f
	}
	return s.file.Read(p)
}

// Close closes the stream. Pending reads return os.ErrClosed.
func (s *TranscodedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closing)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// reposition makes the next read start at a byte offset or segment and
// returns a cursor for the new position. Older cursors stop reading.
func (s *TranscodedStream) reposition(offset int64, segment int) *Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.offset = offset
	s.startSegment = segment
	s.gen++
	return &Cursor{TranscodedStream: s, gen: s.gen}
}

// Cursor is one start's view of a shared stream. Once a later start
// repositions the stream, Read returns session.ErrStreamSuperseded.
type Cursor struct {
	*TranscodedStream
	gen uint64
}

func (c *Cursor) Read(p []byte) (int, error) {
	return c.read(p, c.gen, true)
}
