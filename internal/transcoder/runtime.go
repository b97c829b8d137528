package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/session"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

var (
	// ErrJobNotFound is returned for transcodes that were never started or
	// have been stopped
	ErrJobNotFound = errors.New("transcode not found")

	// ErrStartupTimeout is returned when ffmpeg produces no output in time
	ErrStartupTimeout = errors.New("transcode produced no output in time")
)

// Process is a running ffmpeg invocation
type Process interface {
	Wait() error
	Stop() error
}

// Launcher starts ffmpeg processes
type Launcher interface {
	Launch(ctx context.Context, args []string) (Process, error)
}

type execLauncher struct {
	path string
}

func (l execLauncher) Launch(ctx context.Context, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, l.path, args...)

	p := &execProcess{cmd: cmd}
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, p.stderr.String())
	}
	return nil
}

// Stop asks ffmpeg to finish; the launch context kills it if it does not
func (p *execProcess) Stop() error {
	return p.cmd.Process.Signal(os.Interrupt)
}

type job struct {
	clientID   string
	descriptor *models.TranscodingDescriptor
	dir        string
	output     string
	proc       Process
	cancel     context.CancelFunc
	started    time.Time

	done chan struct{}
	err  error // set before done is closed

	stream *TranscodedStream
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Runtime runs ffmpeg transcodes for sessions. At most MaxConcurrent
// transcodes run at once; further starts fail with session.ErrBusy.
type Runtime struct {
	tempDir         string
	segmentDuration int
	startupTimeout  time.Duration
	stopTimeout     time.Duration
	pollInterval    time.Duration

	inputs   InputResolver
	launcher Launcher
	sem      *semaphore.Weighted
	logger   *logging.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// RuntimeOption configures a Runtime
type RuntimeOption func(*Runtime)

// WithLauncher replaces the ffmpeg process launcher
func WithLauncher(l Launcher) RuntimeOption {
	return func(r *Runtime) { r.launcher = l }
}

// WithPollInterval sets how often output files are checked
func WithPollInterval(d time.Duration) RuntimeOption {
	return func(r *Runtime) { r.pollInterval = d }
}

// NewRuntime creates a runtime. inputs may be nil when descriptor inputs
// are paths ffmpeg can open directly.
func NewRuntime(cfg config.TranscoderConfig, inputs InputResolver, logger *logging.Logger, opts ...RuntimeOption) *Runtime {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	r := &Runtime{
		tempDir:         cfg.TempDir,
		segmentDuration: cfg.SegmentDuration,
		startupTimeout:  cfg.StartupTimeout,
		stopTimeout:     5 * time.Second,
		pollInterval:    100 * time.Millisecond,
		inputs:          inputs,
		launcher:        execLauncher{path: cfg.FFmpegPath},
		sem:             semaphore.NewWeighted(int64(maxConcurrent)),
		logger:          logger.WithComponent("transcoder"),
		jobs:            make(map[string]*job),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.startupTimeout <= 0 {
		r.startupTimeout = 15 * time.Second
	}
	return r
}

func jobKey(clientID, transcodeID string) string {
	return clientID + "/" + transcodeID
}

// StartTranscode launches ffmpeg for d. Starting a transcode that is
// already running or has completed is a no-op.
func (r *Runtime) StartTranscode(ctx context.Context, clientID string, d *models.TranscodingDescriptor) error {
	if d == nil || d.Kind == models.DescriptorNone {
		return ErrNothingToTranscode
	}

	key := jobKey(clientID, d.TranscodeID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.jobs[key]; ok {
		if !j.finished() || j.err == nil {
			return nil
		}
		delete(r.jobs, key)
	}

	if !r.sem.TryAcquire(1) {
		metrics.RecordTranscodeBusy()
		r.logger.LogTranscodeEvent(clientID, d.TranscodeID, "busy", nil)
		return session.ErrBusy
	}

	j, err := r.launch(ctx, clientID, d)
	if err != nil {
		r.sem.Release(1)
		r.logger.LogTranscodeEvent(clientID, d.TranscodeID, "start", err)
		return err
	}

	r.jobs[key] = j
	metrics.UpdateTranscodesRunning(r.runningLocked())
	r.logger.LogTranscodeEvent(clientID, d.TranscodeID, "start", nil)

	go r.wait(j)
	return nil
}

func (r *Runtime) launch(ctx context.Context, clientID string, d *models.TranscodingDescriptor) (*job, error) {
	input := d.Input
	if r.inputs != nil {
		resolved, err := r.inputs.InputURL(ctx, d.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input: %w", err)
		}
		input = resolved
	}

	dir := filepath.Join(r.tempDir, safeName(clientID), safeName(d.TranscodeID))
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	args, output, err := BuildArgs(ArgsOptions{
		Descriptor:      d,
		Input:           input,
		OutputDir:       dir,
		SegmentDuration: r.segmentDuration,
	})
	if err != nil {
		return nil, err
	}

	// the process outlives the request that started it
	procCtx, cancel := context.WithCancel(context.Background())
	proc, err := r.launcher.Launch(procCtx, args)
	if err != nil {
		cancel()
		return nil, err
	}

	j := &job{
		clientID:   clientID,
		descriptor: d,
		dir:        dir,
		output:     output,
		proc:       proc,
		cancel:     cancel,
		started:    time.Now(),
		done:       make(chan struct{}),
	}

	segmentDir := ""
	if d.Segmented || d.Target.VideoContainer == models.VideoContainerHLS {
		segmentDir = dir
	}
	j.stream = newTranscodedStream(output, segmentDir, j.done, r.pollInterval)
	return j, nil
}

func (r *Runtime) wait(j *job) {
	j.err = j.proc.Wait()
	j.cancel()
	r.sem.Release(1)
	close(j.done)

	status := "completed"
	if j.err != nil {
		status = "failed"
	}
	metrics.RecordTranscodeFinished(j.descriptor.Kind.String(), status, time.Since(j.started).Seconds())
	r.logger.LogTranscodeEvent(j.clientID, j.descriptor.TranscodeID, status, j.err)

	r.mu.Lock()
	metrics.UpdateTranscodesRunning(r.runningLocked())
	r.mu.Unlock()
}

// StopTranscode stops a transcode, closes its stream and removes its
// output. Stopping an unknown transcode is a no-op.
func (r *Runtime) StopTranscode(ctx context.Context, clientID, transcodeID string) error {
	key := jobKey(clientID, transcodeID)

	r.mu.Lock()
	j, ok := r.jobs[key]
	if ok {
		delete(r.jobs, key)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	var stopErr error
	if !j.finished() {
		if err := j.proc.Stop(); err != nil {
			j.cancel()
		}

		timer := time.NewTimer(r.stopTimeout)
		select {
		case <-j.done:
		case <-timer.C:
			j.cancel()
			<-j.done
		case <-ctx.Done():
			j.cancel()
			<-j.done
			stopErr = ctx.Err()
		}
		timer.Stop()
	}

	j.stream.Close()
	if err := os.RemoveAll(j.dir); err != nil && stopErr == nil {
		stopErr = fmt.Errorf("failed to remove output: %w", err)
	}

	r.logger.LogTranscodeEvent(clientID, transcodeID, "stop", stopErr)
	return stopErr
}

// IsTranscodeRunning reports whether ffmpeg is still running the transcode
func (r *Runtime) IsTranscodeRunning(clientID, transcodeID string) bool {
	r.mu.Lock()
	j, ok := r.jobs[jobKey(clientID, transcodeID)]
	r.mu.Unlock()
	return ok && !j.finished()
}

// Running returns the number of transcodes in progress
func (r *Runtime) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runningLocked()
}

func (r *Runtime) runningLocked() int {
	running := 0
	for _, j := range r.jobs {
		if !j.finished() {
			running++
		}
	}
	return running
}

// BeginStreaming waits until the transcode has written output
func (r *Runtime) BeginStreaming(ctx context.Context, clientID, transcodeID string) error {
	j, err := r.job(clientID, transcodeID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.startupTimeout)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if hasOutput(j.output) {
			return nil
		}
		select {
		case <-j.done:
			if hasOutput(j.output) {
				return nil
			}
			if j.err != nil {
				return j.err
			}
			return fmt.Errorf("transcode %s finished without output", transcodeID)
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrStartupTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MediaStream returns a cursor over the transcode's shared stream positioned
// at offset
func (r *Runtime) MediaStream(_ context.Context, clientID, transcodeID string, offset time.Duration) (session.StreamHandle, error) {
	j, err := r.job(clientID, transcodeID)
	if err != nil {
		return nil, err
	}

	var byteOffset int64
	segment := 0
	if offset > 0 {
		if j.stream.SegmentDir() != "" {
			segment = int(offset / (time.Duration(r.segmentDurationOrDefault()) * time.Second))
		} else if bitrate := j.descriptor.Target.Bitrate + j.descriptor.Target.AudioBitrate; bitrate > 0 {
			byteOffset = int64(offset.Seconds() * float64(bitrate) / 8)
			if size := fileSize(j.output); byteOffset > size {
				byteOffset = size
			}
		}
	}

	return j.stream.reposition(byteOffset, segment), nil
}

// LiveStream returns a cursor over the transcode's shared stream at the live
// edge
func (r *Runtime) LiveStream(_ context.Context, clientID, transcodeID string) (session.StreamHandle, error) {
	j, err := r.job(clientID, transcodeID)
	if err != nil {
		return nil, err
	}

	if j.stream.SegmentDir() != "" {
		return j.stream.reposition(0, -1), nil
	}
	return j.stream.reposition(fileSize(j.output), 0), nil
}

// FileStream opens a local file as a one-shot stream
func (r *Runtime) FileStream(_ context.Context, path string) (session.StreamHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// Shutdown stops every transcode
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	keys := make([][2]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		keys = append(keys, [2]string{j.clientID, j.descriptor.TranscodeID})
	}
	r.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := r.StopTranscode(ctx, k[0], k[1]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) job(clientID, transcodeID string) (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey(clientID, transcodeID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, transcodeID)
	}
	return j, nil
}

func (r *Runtime) segmentDurationOrDefault() int {
	if r.segmentDuration > 0 {
		return r.segmentDuration
	}
	return 4
}

func hasOutput(path string) bool {
	return fileSize(path) > 0
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// safeName makes an identifier usable as a single path element
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}
