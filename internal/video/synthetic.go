package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"time"
)

const syntheticFrameSize = 64

// SyntheticCodec fabricates a deterministic frame sequence from the input
// bytes instead of decoding them. It stands in for ffmpeg in environments
// without the binaries; the same input always yields the same frames and
// the same final render.
type SyntheticCodec struct{}

func NewSyntheticCodec() *SyntheticCodec {
	return &SyntheticCodec{}
}

func (c *SyntheticCodec) Probe(ctx context.Context, path string) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	seed, err := hashFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("synthetic probe: %w", err)
	}
	seconds := 1 + int(seed[0])%5
	return Meta{
		Duration: time.Duration(seconds) * time.Second,
		Width:    1280,
		Height:   720,
		FPS:      30,
	}, nil
}

func (c *SyntheticCodec) ExtractFrames(ctx context.Context, path string, fps int, dir string) (int, error) {
	seed, err := hashFile(path)
	if err != nil {
		return 0, fmt.Errorf("synthetic extract: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("synthetic extract: %w", err)
	}

	meta, err := c.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	count := int(meta.Duration.Seconds()) * fps
	if count < 1 {
		count = 1
	}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := writeSyntheticFrame(FramePath(dir, i), seed, i); err != nil {
			return 0, fmt.Errorf("synthetic extract: %w", err)
		}
	}
	return count, nil
}

func (c *SyntheticCodec) EncodeVideo(ctx context.Context, dir string, frames, fps int, outPath string) error {
	h := sha256.New()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.Open(FramePath(dir, i))
		if err != nil {
			return fmt.Errorf("synthetic encode: %w", err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("synthetic encode: %w", err)
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("synthetic encode: %w", err)
	}
	defer out.Close()

	if _, err := fmt.Fprintf(out, "AURA-SYNTH-RENDER v1\nframes=%d fps=%d\n%s\n", frames, fps, hex.EncodeToString(h.Sum(nil))); err != nil {
		return fmt.Errorf("synthetic encode: %w", err)
	}
	return nil
}

func writeSyntheticFrame(path string, seed [sha256.Size]byte, index int) error {
	img := image.NewRGBA(image.Rect(0, 0, syntheticFrameSize, syntheticFrameSize))
	base := [3]uint8{seed[index%len(seed)], seed[(index+7)%len(seed)], seed[(index+13)%len(seed)]}
	for y := 0; y < syntheticFrameSize; y++ {
		for x := 0; x < syntheticFrameSize; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: base[0] + uint8(x),
				G: base[1] + uint8(y),
				B: base[2] + uint8(index),
				A: 0xff,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func hashFile(path string) ([sha256.Size]byte, error) {
	var seed [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return seed, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return seed, err
	}
	copy(seed[:], h.Sum(nil))
	return seed, nil
}

var _ Codec = (*SyntheticCodec)(nil)
