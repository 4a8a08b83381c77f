// Package diffusion talks to the frame transformation engine. With an API
// key and base URL configured it drives the remote stable-diffusion service;
// without them it applies a deterministic synthetic restyle so the whole
// pipeline stays operational in local and CI environments.
package diffusion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aura/internal/domain"
	"aura/internal/infra"
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is the engine facade. Remote failures are classified into
// domain.ErrEngineTransient (retryable: throttling, 5xx, network) and
// domain.ErrEngineFatal (malformed request, content rejection).
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request carries the per-frame generation settings.
type Request struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	GuidanceScale  float64
	PriorContext   []byte
}

// Result is one transformed frame plus the continuity context the engine
// wants back on the next call.
type Result struct {
	Frame   []byte
	Context []byte
}

func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	model := opts.Model
	if model == "" {
		model = "runwayml/stable-diffusion-v1-5"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Remote reports whether the client calls the external service.
func (c *Client) Remote() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// Transform restyles one frame. The returned context must be carried into
// the next frame's request for temporal continuity.
func (c *Client) Transform(ctx context.Context, frame []byte, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !c.Remote() {
		return c.syntheticTransform(frame, req), nil
	}
	return c.remoteTransform(ctx, frame, req)
}

// GenerateImage produces a single still from the prompt alone.
func (c *Client) GenerateImage(ctx context.Context, req Request, width, height int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}
	if !c.Remote() {
		seed := transformSeed(nil, req)
		return renderSyntheticFrame(width, height, seed), nil
	}

	payload := imagePayload{
		Model:          c.model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		Width:          width,
		Height:         height,
	}
	var resp imageResponse
	if err := c.invoke(ctx, "/v1/images", payload, &resp); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(resp.ImageB64)
	if err != nil {
		return nil, fmt.Errorf("engine: decode image payload: %w", domain.ErrEngineTransient)
	}
	return data, nil
}

type transformPayload struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Steps          int     `json:"steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	FrameB64       string  `json:"frame_b64"`
	ContextB64     string  `json:"context_b64,omitempty"`
}

type transformResponse struct {
	FrameB64   string `json:"frame_b64"`
	ContextB64 string `json:"context_b64"`
}

type imagePayload struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Steps          int     `json:"steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

type imageResponse struct {
	ImageB64 string `json:"image_b64"`
}

type engineErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) remoteTransform(ctx context.Context, frame []byte, req Request) (Result, error) {
	payload := transformPayload{
		Model:          c.model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		FrameB64:       base64.StdEncoding.EncodeToString(frame),
		ContextB64:     base64.StdEncoding.EncodeToString(req.PriorContext),
	}

	var resp transformResponse
	if err := c.invoke(ctx, "/v1/transforms", payload, &resp); err != nil {
		return Result{}, err
	}

	out, err := base64.StdEncoding.DecodeString(resp.FrameB64)
	if err != nil || len(out) == 0 {
		return Result{}, fmt.Errorf("engine: decode frame payload: %w", domain.ErrEngineTransient)
	}
	next, err := base64.StdEncoding.DecodeString(resp.ContextB64)
	if err != nil {
		next = nil
	}
	return Result{Frame: out, Context: next}, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("engine: marshal request: %w", domain.ErrEngineFatal)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("engine: create request: %w", domain.ErrEngineFatal)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("engine: %v: %w", err, domain.ErrEngineTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		message := readErrorMessage(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("engine: status %d: %s: %w", resp.StatusCode, message, domain.ErrEngineTransient)
		}
		return fmt.Errorf("engine: status %d: %s: %w", resp.StatusCode, message, domain.ErrEngineFatal)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("engine: decode response: %w", domain.ErrEngineTransient)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var apiErr engineErrorResponse
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return "no error body"
}

// syntheticTransform restyles the frame deterministically: the same frame,
// prompt and context always yield the same output. The rolled context hash
// gives each frame a dependency on its predecessors, mimicking temporal
// conditioning.
func (c *Client) syntheticTransform(frame []byte, req Request) Result {
	seed := transformSeed(frame, req)

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return Result{
			Frame:   renderSyntheticFrame(64, 64, seed),
			Context: rollContext(req.PriorContext, seed),
		}
	}

	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	tintR := int(seed[0]) / 4
	tintG := int(seed[1]) / 4
	tintB := int(seed[2]) / 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out.SetRGBA(x, y, color.RGBA{
				R: mix(uint8(r>>8), tintR),
				G: mix(uint8(g>>8), tintG),
				B: mix(uint8(b>>8), tintB),
				A: 0xff,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return Result{
			Frame:   renderSyntheticFrame(64, 64, seed),
			Context: rollContext(req.PriorContext, seed),
		}
	}
	return Result{Frame: buf.Bytes(), Context: rollContext(req.PriorContext, seed)}
}

func mix(base uint8, tint int) uint8 {
	v := int(base)*3/4 + tint
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func transformSeed(frame []byte, req Request) [sha256.Size]byte {
	h := sha256.New()
	h.Write(frame)
	io.WriteString(h, req.Prompt)
	io.WriteString(h, req.NegativePrompt)
	fmt.Fprintf(h, "%d|%.2f", req.Steps, req.GuidanceScale)
	h.Write(req.PriorContext)
	var seed [sha256.Size]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

func rollContext(prior []byte, seed [sha256.Size]byte) []byte {
	h := sha256.New()
	h.Write(prior)
	h.Write(seed[:])
	return h.Sum(nil)
}

func renderSyntheticFrame(width, height int, seed [sha256.Size]byte) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: seed[0] + uint8(x*255/width),
				G: seed[1] + uint8(y*255/height),
				B: seed[2],
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
