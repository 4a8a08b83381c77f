package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// commandRunner abstracts process execution so codec behavior is testable
// without the real binaries.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	return res, err
}

// FFmpegCodec shells out to ffmpeg and ffprobe.
type FFmpegCodec struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
}

// NewFFmpegCodec builds a codec around the given binary paths.
func NewFFmpegCodec(ffmpegPath, ffprobePath string) *FFmpegCodec {
	return &FFmpegCodec{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: execRunner{}}
}

// NewFFmpegCodecForTests injects a fake runner.
func NewFFmpegCodecForTests(ffmpegPath, ffprobePath string, runner commandRunner) *FFmpegCodec {
	return &FFmpegCodec{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: runner}
}

// Available reports whether both binaries resolve on PATH.
func (c *FFmpegCodec) Available() bool {
	if _, err := exec.LookPath(c.ffmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(c.ffprobePath)
	return err == nil
}

func (c *FFmpegCodec) Probe(ctx context.Context, path string) (Meta, error) {
	res, err := c.runner.Run(ctx, c.ffprobePath, buildProbeArgs(path)...)
	if err != nil {
		return Meta{}, fmt.Errorf("probe %s: %s: %w", filepath.Base(path), strings.TrimSpace(res.Stderr), err)
	}
	meta, err := parseProbeOutput(res.Stdout)
	if err != nil {
		return Meta{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return meta, nil
}

func (c *FFmpegCodec) ExtractFrames(ctx context.Context, path string, fps int, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("extract frames: %w", err)
	}
	pattern := filepath.Join(dir, "frame_%06d.png")
	res, err := c.runner.Run(ctx, c.ffmpegPath, buildExtractArgs(path, fps, pattern)...)
	if err != nil {
		return 0, fmt.Errorf("extract frames: %s: %w", strings.TrimSpace(res.Stderr), err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return 0, fmt.Errorf("extract frames: %w", err)
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("extract frames: no frames produced")
	}
	return len(matches), nil
}

func (c *FFmpegCodec) EncodeVideo(ctx context.Context, dir string, frames, fps int, outPath string) error {
	pattern := filepath.Join(dir, "frame_%06d.png")
	res, err := c.runner.Run(ctx, c.ffmpegPath, buildEncodeArgs(pattern, fps, outPath)...)
	if err != nil {
		return fmt.Errorf("encode video: %s: %w", strings.TrimSpace(res.Stderr), err)
	}
	return nil
}

func buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	}
}

func buildExtractArgs(path string, fps int, pattern string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-fps_mode", "vfr",
		pattern,
	}
}

func buildEncodeArgs(pattern string, fps int, outPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", pattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outPath,
	}
}

// parseProbeOutput reads ffprobe key=value lines.
func parseProbeOutput(out string) (Meta, error) {
	var meta Meta
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			meta.Width, _ = strconv.Atoi(value)
		case "height":
			meta.Height, _ = strconv.Atoi(value)
		case "r_frame_rate":
			meta.FPS = parseRational(value)
		case "duration":
			if secs, err := strconv.ParseFloat(value, 64); err == nil {
				meta.Duration = time.Duration(secs * float64(time.Second))
			}
		}
	}
	if meta.Duration <= 0 {
		return Meta{}, fmt.Errorf("missing or invalid duration")
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return Meta{}, fmt.Errorf("missing video stream dimensions")
	}
	return meta, nil
}

func parseRational(v string) float64 {
	num, den, ok := strings.Cut(v, "/")
	if !ok {
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

var _ Codec = (*FFmpegCodec)(nil)
