// Package video decodes uploaded clips into ordered frame sequences and
// assembles transformed frames back into a container. The ffmpeg-backed
// codec is used when the binaries are installed; the synthetic codec keeps
// the full pipeline runnable without them.
package video

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Meta describes a probed clip.
type Meta struct {
	Duration time.Duration
	Width    int
	Height   int
	FPS      float64
}

// Codec turns a clip into frames and frames back into a clip. Frames are
// written to dir following the FramePath naming, 1-based and contiguous.
type Codec interface {
	Probe(ctx context.Context, path string) (Meta, error)
	ExtractFrames(ctx context.Context, path string, fps int, dir string) (int, error)
	EncodeVideo(ctx context.Context, dir string, frames, fps int, outPath string) error
}

// FramePath returns the canonical path of the i-th frame (0-based index)
// inside dir.
func FramePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i+1))
}
