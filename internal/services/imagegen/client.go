package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"memeflow/internal/config"
	"memeflow/internal/fileutil"
	"memeflow/internal/services"
)

const (
	component          = "imagegen"
	defaultHTTPTimeout = 120 * time.Second
	maxResponseBytes   = 64 << 20
)

// Config captures the settings required to reach the image service.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// ConfigFrom maps the process configuration onto client settings.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:         cfg.ImageGen.APIKey,
		BaseURL:        cfg.ImageGen.BaseURL,
		TimeoutSeconds: cfg.ImageGen.TimeoutSeconds,
	}
}

// Asset is a named input file sent alongside a request.
type Asset struct {
	Name string
	Path string
}

// TextZone is a horizontal band of the image reserved for caption text, in
// pixels from the top edge.
type TextZone struct {
	Y      int `json:"y"`
	Height int `json:"height"`
}

// BrandRequest blends brand assets into a template image.
type BrandRequest struct {
	TemplatePath string
	Assets       []Asset
	Instructions string
}

// RenderRequest draws caption text onto an image.
type RenderRequest struct {
	ImagePath  string
	TopText    string
	BottomText string
	TopZone    TextZone
	BottomZone TextZone
}

// AnimateRequest turns a still meme into a short clip.
type AnimateRequest struct {
	ImagePath       string
	Style           string
	DurationSeconds float64
}

// Artifact describes a file written by the client.
type Artifact struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	SHA256      string `json:"sha256"`
}

// Client talks to the image service.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client for the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type encodedAsset struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// Brand blends assets into the template and writes the result to dest.
func (c *Client) Brand(ctx context.Context, req BrandRequest, dest string) (Artifact, error) {
	const op = "brand"
	template, err := encodeFile(op, req.TemplatePath)
	if err != nil {
		return Artifact{}, err
	}
	assets := make([]encodedAsset, 0, len(req.Assets))
	for _, asset := range req.Assets {
		data, err := encodeFile(op, asset.Path)
		if err != nil {
			return Artifact{}, err
		}
		assets = append(assets, encodedAsset{Name: asset.Name, Data: data})
	}
	payload := map[string]any{
		"image":        template,
		"assets":       assets,
		"instructions": strings.TrimSpace(req.Instructions),
	}
	return c.postAndWrite(ctx, op, "/v1/brand", payload, dest)
}

// Render draws the caption text onto the image and writes the result to dest.
func (c *Client) Render(ctx context.Context, req RenderRequest, dest string) (Artifact, error) {
	const op = "render"
	image, err := encodeFile(op, req.ImagePath)
	if err != nil {
		return Artifact{}, err
	}
	payload := map[string]any{
		"image":       image,
		"top_text":    req.TopText,
		"bottom_text": req.BottomText,
		"top_zone":    req.TopZone,
		"bottom_zone": req.BottomZone,
	}
	return c.postAndWrite(ctx, op, "/v1/render", payload, dest)
}

// Animate produces a short clip from the image and writes it to dest.
func (c *Client) Animate(ctx context.Context, req AnimateRequest, dest string) (Artifact, error) {
	const op = "animate"
	image, err := encodeFile(op, req.ImagePath)
	if err != nil {
		return Artifact{}, err
	}
	payload := map[string]any{
		"image":            image,
		"style":            req.Style,
		"duration_seconds": req.DurationSeconds,
	}
	return c.postAndWrite(ctx, op, "/v1/animate", payload, dest)
}

func encodeFile(op, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrUserInput, component, op, "input image is not readable", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (c *Client) postAndWrite(ctx context.Context, op, path string, payload any, dest string) (Artifact, error) {
	if c.cfg.BaseURL == "" {
		return Artifact{}, services.Wrap(services.ErrConfiguration, component, op, "base url required", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrConfiguration, component, op, "build url", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrContract, component, op, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrConfiguration, component, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Artifact{}, services.ClassifyTransportError(component, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Artifact{}, services.ClassifyTransportError(component, op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return Artifact{}, services.ClassifyHTTPStatus(component, op, resp.StatusCode, retryAfter)
	}
	if len(body) == 0 {
		return Artifact{}, services.Transient(services.ReasonMalformedResponse, component, op, "service returned an empty body", nil)
	}
	contentType := resp.Header.Get("Content-Type")
	if media, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = media
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}
	if strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/") {
		return Artifact{}, services.Transient(services.ReasonMalformedResponse, component, op,
			fmt.Sprintf("service returned %s instead of media", contentType), nil)
	}

	if err := fileutil.WriteFileAtomic(dest, body, 0o644); err != nil {
		return Artifact{}, services.Wrap(services.ErrPersistence, component, op, "write artifact", err)
	}
	return Artifact{
		Path:        dest,
		ContentType: contentType,
		Bytes:       len(body),
		SHA256:      fileutil.HashBytes(body),
	}, nil
}
