// Package extractorclient talks to the face-embedding server over HTTP.
package extractorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/face-attend/internal/config"
	"github.com/example/face-attend/internal/extractor"
	"github.com/example/face-attend/internal/logging"
)

// MaxReferenceImageSize caps reference image downloads.
const MaxReferenceImageSize = 10 << 20

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
	logger  *zap.Logger
}

// New creates an embedding server client. The timeout in cfg bounds every
// extraction call; a slow model answer fails the request rather than
// hanging it.
func New(cfg config.ExtractorConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		dim:     cfg.Dim,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Named("extractorclient"),
	}
}

// embedResponse is the embedding server's answer for a represent call.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Detail    string    `json:"detail"`
}

// Extract posts the image to the embedding server and returns the face
// embedding. A 422 from the server means the model found no face.
func (c *Client) Extract(ctx context.Context, image []byte) (extractor.Embedding, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("model_name", c.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/represent", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("extractorclient.represent", "", err)
		c.logger.Error("embedding server call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("%w: %s", extractor.ErrNoFace, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, extractor.ErrNoFace
	}
	if c.dim > 0 && len(parsed.Embedding) != c.dim {
		return nil, fmt.Errorf("embedding server returned dim %d, expected %d", len(parsed.Embedding), c.dim)
	}

	return parsed.Embedding, nil
}

// FetchImage downloads the encoded image at url, for one-off verification
// against a reference image instead of a stored embedding.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference image fetch failed (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxReferenceImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read reference image: %w", err)
	}
	if len(data) > MaxReferenceImageSize {
		return nil, fmt.Errorf("reference image exceeds %d bytes", MaxReferenceImageSize)
	}
	return data, nil
}
