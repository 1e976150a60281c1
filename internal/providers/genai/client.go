// Package genai is a lightweight facade over the Gemini REST API. It owns
// the long-running video operation protocol (submit, poll, download) and
// the synchronous image endpoints, so callers deal with a single call that
// resolves to a terminal result.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sceneflow/internal/infra"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultPollInterval = 10 * time.Second

	// maxDiagnosticBytes bounds error excerpts surfaced to callers.
	maxDiagnosticBytes = 200
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
}

// Client talks to the Gemini API. Video generation is a long-running
// operation: the job is submitted, then the operation resource is polled at
// a fixed interval until it reports done. The client imposes no overall
// deadline; legitimate jobs run for minutes. Callers abort via ctx.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
}

// SeedImage is an encoded still image used to condition video generation.
type SeedImage struct {
	Data []byte
	MIME string
}

// VideoRequest carries everything needed to generate one video clip.
type VideoRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	SeedImage   *SeedImage
	RequestID   string
}

// VideoAsset is the downloaded, validated video payload.
type VideoAsset struct {
	Data []byte
	MIME string
	URI  string
}

// ImagePart is one reference image for an edit request.
type ImagePart struct {
	Data []byte
	MIME string
}

// EditRequest carries a multi-image edit instruction.
type EditRequest struct {
	Model  string
	Prompt string
	Images []ImagePart
}

// EditResult is the edited image plus any descriptive text the model added.
type EditResult struct {
	ImageData []byte
	MIME      string
	Text      string
}

// ImagenRequest carries a pure text-to-image generation call.
type ImagenRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
}

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one is created.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

type videoInstance struct {
	Prompt string         `json:"prompt"`
	Image  *inlineImage   `json:"image,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type videoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	SampleCount int    `json:"sampleCount"`
}

type predictLongRunningRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationResource struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *operationError `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// GenerateVideo submits a video job, waits for the operation to reach a
// terminal state, downloads the result and validates that the payload is
// genuinely a video. It blocks until done or ctx is cancelled.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoAsset, error) {
	payload := predictLongRunningRequest{
		Instances:  []videoInstance{{Prompt: req.Prompt}},
		Parameters: videoParameters{AspectRatio: req.AspectRatio, SampleCount: 1},
	}
	if req.SeedImage != nil && len(req.SeedImage.Data) > 0 {
		payload.Instances[0].Image = &inlineImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.SeedImage.Data),
			MimeType:           req.SeedImage.MIME,
		}
	}

	var op operationResource
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(req.Model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &op); err != nil {
		return nil, fmt.Errorf("submit video job: %w", err)
	}
	if op.Name == "" {
		return nil, fmt.Errorf("submit video job: no operation name returned")
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Str("operation", op.Name).
		Msg("genai: video operation submitted")

	done, err := c.awaitOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if done.Error != nil {
		return nil, fmt.Errorf("video generation failed: %s", done.Error.Message)
	}

	uri := ""
	if done.Response != nil && len(done.Response.GenerateVideoResponse.GeneratedSamples) > 0 {
		uri = done.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	}
	if uri == "" {
		return nil, fmt.Errorf("video generation finished but returned no downloadable URI")
	}

	data, mime, err := c.download(ctx, uri)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mime, "video/") {
		return nil, fmt.Errorf("downloaded file is not a valid video (content type %q): %s", mime, excerpt(data))
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Int("bytes", len(data)).
		Msg("genai: video downloaded")

	return &VideoAsset{Data: data, MIME: mime, URI: uri}, nil
}

// awaitOperation polls the operation resource at the configured interval
// until it reports done. Cancellation takes effect between polls; an
// in-flight HTTP request is bounded by the HTTP client's own timeout.
func (c *Client) awaitOperation(ctx context.Context, op operationResource) (*operationResource, error) {
	current := op
	for !current.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		var next operationResource
		if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(current.Name, "/"), nil, &next); err != nil {
			return nil, fmt.Errorf("poll operation %s: %w", current.Name, err)
		}
		if next.Name == "" {
			next.Name = current.Name
		}
		current = next
	}
	return &current, nil
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// EditImage sends the reference images plus instruction through the
// multimodal endpoint and returns the produced image with any accompanying
// text. The model answering with text only is surfaced as an error carrying
// that text.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*EditResult, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("an image is required for editing")
	}
	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: img.MIME,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, part{Text: req.Prompt})

	payload := generateContentRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}

	var resp generateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(req.Model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}

	var result EditResult
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" && len(result.ImageData) == 0 {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("decode inline image: %w", err)
				}
				result.ImageData = data
				result.MIME = p.InlineData.MimeType
			} else if p.Text != "" {
				result.Text = p.Text
			}
		}
	}
	if len(result.ImageData) == 0 {
		if result.Text != "" {
			return nil, fmt.Errorf("model responded with text instead of an image: %s", result.Text)
		}
		return nil, fmt.Errorf("image editing resulted in no image output")
	}
	if result.MIME == "" {
		result.MIME = "image/png"
	}
	return &result, nil
}

type predictRequest struct {
	Instances  []struct {
		Prompt string `json:"prompt"`
	} `json:"instances"`
	Parameters struct {
		SampleCount    int    `json:"sampleCount"`
		AspectRatio    string `json:"aspectRatio,omitempty"`
		OutputMimeType string `json:"outputMimeType,omitempty"`
	} `json:"parameters"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// GenerateImage runs a pure text-to-image call against an Imagen model.
func (c *Client) GenerateImage(ctx context.Context, req ImagenRequest) (*EditResult, error) {
	var payload predictRequest
	payload.Instances = append(payload.Instances, struct {
		Prompt string `json:"prompt"`
	}{Prompt: req.Prompt})
	payload.Parameters.SampleCount = 1
	payload.Parameters.AspectRatio = req.AspectRatio
	payload.Parameters.OutputMimeType = "image/png"

	var resp predictResponse
	path := fmt.Sprintf("/models/%s:predict", url.PathEscape(req.Model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("image generation did not return any images")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	mime := resp.Predictions[0].MimeType
	if mime == "" {
		mime = "image/png"
	}
	return &EditResult{ImageData: data, MIME: mime}, nil
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr apiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, excerpt(data))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// download fetches a result URI and returns the payload plus content type.
func (c *Client) download(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download video status %d: %s", resp.StatusCode, excerpt(data))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read video: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	return data, strings.TrimSpace(mime), nil
}

// excerpt trims a diagnostic body to a bounded, single-line snippet.
func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxDiagnosticBytes {
		s = s[:maxDiagnosticBytes]
	}
	return s
}
