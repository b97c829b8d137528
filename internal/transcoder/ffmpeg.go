package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// InputResolver maps a media location to something ffmpeg can open
type InputResolver interface {
	InputURL(ctx context.Context, location string) (string, error)
}

// FFmpeg wraps ffprobe analysis
type FFmpeg struct {
	ffmpegPath   string
	ffprobePath  string
	probeTimeout time.Duration
	inputs       InputResolver
	logger       *logging.Logger
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string, probeTimeout time.Duration, inputs InputResolver, logger *logging.Logger) *FFmpeg {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FFmpeg{
		ffmpegPath:   ffmpegPath,
		ffprobePath:  ffprobePath,
		probeTimeout: probeTimeout,
		inputs:       inputs,
		logger:       logger.WithComponent("ffmpeg"),
	}
}

// ProbeResult holds the ffprobe output
type ProbeResult struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	BitRate      string            `json:"bit_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Channels     int               `json:"channels"`
	SampleRate   string            `json:"sample_rate"`
	Tags         map[string]string `json:"tags"`
}

// Probe runs ffprobe against input
func (f *FFmpeg) Probe(ctx context.Context, input string) (*ProbeResult, error) {
	if f.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.probeTimeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

// Analyze probes a media item and returns its classified metadata
func (f *FFmpeg) Analyze(ctx context.Context, item models.MediaItem) (*models.MetadataContainer, error) {
	input := item.Location
	if f.inputs != nil {
		resolved, err := f.inputs.InputURL(ctx, item.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", item.Location, err)
		}
		input = resolved
	}

	start := time.Now()
	probe, err := f.Probe(ctx, input)
	if err != nil {
		f.logger.WithField("media_id", item.ID).WithError(err).Warn("analysis failed")
		return nil, err
	}

	meta := toMetadata(probe, item.Location)
	f.logger.WithFields(map[string]interface{}{
		"media_id": item.ID,
		"kind":     meta.Kind.String(),
		"elapsed":  time.Since(start).String(),
	}).Debug("media analyzed")

	return meta, nil
}
