// Package media turns a raw video upload into a silent video file and an
// extracted audio track using ffmpeg subprocesses.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Result points at the files produced by a successful Process call. The caller
// owns both paths and must Cleanup them when done.
type Result struct {
	VideoPath string
	AudioPath string
}

// Processor transforms raw video bytes into separated media files.
type Processor interface {
	Process(ctx context.Context, data []byte) (Result, error)
	Cleanup(paths ...string)
}

// Config tunes the ffmpeg processor.
type Config struct {
	WorkDir      string
	FFmpegPath   string
	VideoTimeout time.Duration
	AudioTimeout time.Duration
}

// FFmpegProcessor implements Processor by shelling out to ffmpeg.
type FFmpegProcessor struct {
	cfg    Config
	logger zerolog.Logger
}

// New constructs an ffmpeg-backed processor.
func New(cfg Config, logger zerolog.Logger) *FFmpegProcessor {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = 5 * time.Minute
	}
	if cfg.AudioTimeout <= 0 {
		cfg.AudioTimeout = 3 * time.Minute
	}

	return &FFmpegProcessor{
		cfg:    cfg,
		logger: logger.With().Str("component", "media_processor").Logger(),
	}
}

// Process writes the upload to a temp file, strips the audio track into a
// silent video and extracts the audio into its own file. Whatever temp files
// exist are removed before an error propagates.
func (p *FFmpegProcessor) Process(ctx context.Context, data []byte) (Result, error) {
	kind := mimetype.Detect(data)
	if !strings.HasPrefix(kind.String(), "video/") {
		return Result{}, fmt.Errorf("unsupported media type %q", kind.String())
	}

	id := uuid.NewString()
	inputPath := filepath.Join(p.cfg.WorkDir, fmt.Sprintf("upload-%s%s", id, kind.Extension()))
	videoPath := filepath.Join(p.cfg.WorkDir, fmt.Sprintf("video-%s.mp4", id))
	audioPath := filepath.Join(p.cfg.WorkDir, fmt.Sprintf("audio-%s.mp3", id))

	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("write media input: %w", err)
	}
	defer p.Cleanup(inputPath)

	if err := p.runFFmpeg(ctx, p.cfg.VideoTimeout, "-i", inputPath, "-an", "-c:v", "copy", videoPath); err != nil {
		p.Cleanup(videoPath)
		return Result{}, fmt.Errorf("strip audio track: %w", err)
	}

	if err := p.runFFmpeg(ctx, p.cfg.AudioTimeout, "-i", inputPath, "-vn", "-q:a", "2", audioPath); err != nil {
		p.Cleanup(videoPath, audioPath)
		return Result{}, fmt.Errorf("extract audio track: %w", err)
	}

	return Result{VideoPath: videoPath, AudioPath: audioPath}, nil
}

func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, timeout time.Duration, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.cfg.FFmpegPath, append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", timeout)
		}
		return fmt.Errorf("ffmpeg: %v: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

// Cleanup removes the given files, logging failures without returning them.
func (p *FFmpegProcessor) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("path", path).Msg("failed to remove temp media file")
		}
	}
}
