package transcoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/session"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
	"go.uber.org/goleak"
)

type fakeProcess struct {
	stop    chan struct{}
	once    sync.Once
	exitErr error
}

func (p *fakeProcess) Wait() error {
	<-p.stop
	return p.exitErr
}

func (p *fakeProcess) Stop() error {
	p.once.Do(func() { close(p.stop) })
	return nil
}

// fakeLauncher writes output to the path ffmpeg would write to
type fakeLauncher struct {
	mu       sync.Mutex
	output   []byte
	exitErr  error
	exitNow  bool
	launched [][]string
}

func (l *fakeLauncher) Launch(_ context.Context, args []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, args)

	if len(l.output) > 0 {
		if err := os.WriteFile(args[len(args)-1], l.output, 0644); err != nil {
			return nil, err
		}
	}

	p := &fakeProcess{stop: make(chan struct{}), exitErr: l.exitErr}
	if l.exitNow {
		p.Stop()
	}
	return p, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func newTestRuntime(t *testing.T, l *fakeLauncher, maxConcurrent int) *Runtime {
	t.Helper()
	cfg := config.TranscoderConfig{
		TempDir:         t.TempDir(),
		MaxConcurrent:   maxConcurrent,
		SegmentDuration: 4,
		StartupTimeout:  200 * time.Millisecond,
	}
	r := NewRuntime(cfg, nil, nil, WithLauncher(l), WithPollInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return r
}

func progressive(id string) *models.TranscodingDescriptor {
	return &models.TranscodingDescriptor{
		Kind:        models.DescriptorVideo,
		TranscodeID: id,
		Input:       "/media/" + id + ".avi",
		Source:      models.FormatSpec{VideoContainer: models.VideoContainerAVI, VideoCodec: models.VideoCodecMPEG4, Height: 480},
		Target:      models.FormatSpec{
			VideoContainer: models.VideoContainerMPEGTS,
			VideoCodec:     models.VideoCodecH264,
			Height:         480,
			Bitrate:        8000,
		},
	}
}

func segmented(id string) *models.TranscodingDescriptor {
	d := progressive(id)
	d.Target.VideoContainer = models.VideoContainerHLS
	d.Segmented = true
	return d
}

func TestRuntimeStartIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := &fakeLauncher{output: []byte("data")}
	r := newTestRuntime(t, l, 2)
	ctx := context.Background()

	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	assert.Equal(t, 1, l.launches())
	assert.True(t, r.IsTranscodeRunning("client", "tc1"))
	assert.False(t, r.IsTranscodeRunning("other-client", "tc1"))
	assert.Equal(t, 1, r.Running())

	require.NoError(t, r.StopTranscode(ctx, "client", "tc1"))
	assert.False(t, r.IsTranscodeRunning("client", "tc1"))
	assert.NoError(t, r.StopTranscode(ctx, "client", "tc1"), "stopping twice is a no-op")
}

func TestRuntimeBusy(t *testing.T) {
	l := &fakeLauncher{output: []byte("data")}
	r := newTestRuntime(t, l, 1)
	ctx := context.Background()

	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	err := r.StartTranscode(ctx, "client", progressive("tc2"))
	assert.ErrorIs(t, err, session.ErrBusy)
	assert.Equal(t, 1, l.launches())

	require.NoError(t, r.StopTranscode(ctx, "client", "tc1"))
	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc2")))
}

func TestRuntimeRejectsPassthrough(t *testing.T) {
	r := newTestRuntime(t, &fakeLauncher{}, 1)
	err := r.StartTranscode(context.Background(), "client", &models.TranscodingDescriptor{Kind: models.DescriptorNone})
	assert.ErrorIs(t, err, ErrNothingToTranscode)
	assert.Equal(t, 0, r.Running())
}

func TestRuntimeRestartsFailedTranscode(t *testing.T) {
	l := &fakeLauncher{exitErr: errors.New("exit status 1"), exitNow: true}
	r := newTestRuntime(t, l, 1)
	ctx := context.Background()

	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	err := r.BeginStreaming(ctx, "client", "tc1")
	assert.EqualError(t, err, "exit status 1")

	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	assert.Equal(t, 2, l.launches())
}

func TestRuntimeBeginStreamingTimeout(t *testing.T) {
	r := newTestRuntime(t, &fakeLauncher{}, 1)
	ctx := context.Background()

	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	assert.ErrorIs(t, r.BeginStreaming(ctx, "client", "tc1"), ErrStartupTimeout)
	assert.ErrorIs(t, r.BeginStreaming(ctx, "client", "missing"), ErrJobNotFound)
}

func TestRuntimeMediaStream(t *testing.T) {
	// 1000 bytes per second at 8000 bits/s
	data := append(append(bytes.Repeat([]byte("0"), 1000), bytes.Repeat([]byte("1"), 1000)...), bytes.Repeat([]byte("2"), 1000)...)
	l := &fakeLauncher{output: data}
	r := newTestRuntime(t, l, 1)
	ctx := context.Background()

	require.NoError(t, r.StartTranscode(ctx, "client", progressive("tc1")))
	require.NoError(t, r.BeginStreaming(ctx, "client", "tc1"))

	h, err := r.MediaStream(ctx, "client", "tc1", 2*time.Second)
	require.NoError(t, err)
	ts, ok := h.(session.TranscodingStream)
	require.True(t, ok)
	assert.Empty(t, ts.SegmentDir())

	buf := make([]byte, 4)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "2222", string(buf[:n]))

	again, err := r.MediaStream(ctx, "client", "tc1", 0)
	require.NoError(t, err)
	assert.Same(t, h.(*Cursor).TranscodedStream, again.(*Cursor).TranscodedStream, "one stream per transcode")
	n, err = again.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0000", string(buf[:n]))

	// the earlier start no longer reads the shared output
	_, err = h.Read(buf)
	assert.ErrorIs(t, err, session.ErrStreamSuperseded)
	n, err = again.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0000", string(buf[:n]))

	require.NoError(t, r.StopTranscode(ctx, "client", "tc1"))
	_, err = again.Read(buf)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestSupersededCursorNeverInterleaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.ts")
	require.NoError(t, os.WriteFile(path, []byte("first-second"), 0644))

	done := make(chan struct{})
	close(done)
	s := newTranscodedStream(path, "", done, time.Millisecond)

	first := s.reposition(0, 0)
	buf := make([]byte, 6)
	n, err := first.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first-", string(buf[:n]))

	second := s.reposition(6, 0)
	_, err = first.Read(buf)
	assert.ErrorIs(t, err, session.ErrStreamSuperseded)

	got, err := io.ReadAll(second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	require.NoError(t, s.Close())
}

func TestTranscodedStreamReopensWhenDraining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.ts")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	done := make(chan struct{})
	s := newTranscodedStream(path, "", done, time.Hour)
	c := s.reposition(3, 0)

	result := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := c.Read(buf)
		result <- buf[:n]
	}()

	// the reader waits at the end of the output; the file handle is
	// dropped and more output lands before ffmpeg exits
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.file != nil
	}, time.Second, time.Millisecond)
	s.mu.Lock()
	s.file.Close()
	s.file = nil
	s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	close(done)

	select {
	case got := <-result:
		assert.Equal(t, "def", string(got))
	case <-time.After(time.Second):
		t.Fatal("read did not return after the transcode finished")
	}
	require.NoError(t, s.Close())
}

func TestRuntimeSegmentedStreams(t *testing.T) {
	l := &fakeLauncher{output: []byte("#EXTM3U\n")}
	r := newTestRuntime(t, l, 1)
	ctx := context.Background()

	require.NoError(t, r.StartTranscode(ctx, "client", segmented("tc1")))
	require.NoError(t, r.BeginStreaming(ctx, "client", "tc1"))

	h, err := r.MediaStream(ctx, "client", "tc1", 9*time.Second)
	require.NoError(t, err)
	ts := h.(*Cursor)
	assert.Equal(t, 2, ts.StartSegment())
	assert.Equal(t, playlistName, filepath.Base(ts.Path()))
	assert.DirExists(t, ts.SegmentDir())

	playlist, err := io.ReadAll(ts)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(playlist))

	_, err = r.LiveStream(ctx, "client", "tc1")
	require.NoError(t, err)
	assert.Equal(t, -1, ts.StartSegment())

	dir := ts.SegmentDir()
	require.NoError(t, r.StopTranscode(ctx, "client", "tc1"))
	assert.NoDirExists(t, dir)
}

func TestTranscodedStreamFollowsOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.ts")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	done := make(chan struct{})
	s := newTranscodedStream(path, "", done, time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			f.Write([]byte("def"))
			f.Close()
		}
		close(done)
	}()

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestRuntimeFileStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	r := newTestRuntime(t, &fakeLauncher{}, 1)
	h, err := r.FileStream(context.Background(), path)
	require.NoError(t, err)
	defer h.Close()

	_, resumable := h.(session.TranscodingStream)
	assert.False(t, resumable)

	got, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	_, err = r.FileStream(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"client-1", "client-1"},
		{"../etc", "___etc"},
		{"a/b:c", "a_b_c"},
		{"", "_"},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
