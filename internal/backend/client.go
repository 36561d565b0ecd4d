package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/caption-studio/pkg/log"
	"github.com/google/uuid"
)

const (
	predictPath   = "/predict"
	translatePath = "/translate"

	// maxErrorBody caps how much of an error reply is kept for messages.
	maxErrorBody = 4 << 10
)

// Client talks to the captioning and translation endpoints.
// Safe for concurrent use.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

// BaseURL returns the endpoint root currently in use.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points later requests at a different backend. Requests
// already in flight keep the old address.
func (c *Client) SetBaseURL(baseURL string) error {
	cfg := Config{BaseURL: baseURL}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
	return nil
}

// Caption uploads img as the multipart field "image" and returns the
// caption exactly as the backend sent it.
func (c *Client) Caption(ctx context.Context, img Image) (string, error) {
	body, contentType, err := multipartImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	data, err := c.post(ctx, "caption", predictPath, contentType, body)
	if err != nil {
		return "", err
	}

	var resp captionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Caption == nil {
		return "", fmt.Errorf("%w: missing caption field", ErrMalformedResponse)
	}
	return *resp.Caption, nil
}

// Translate asks the backend to translate text into target and returns the
// translated text as sent. A missing field yields "".
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	payload, err := json.Marshal(translateRequest{Text: text, Target: target})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	data, err := c.post(ctx, "translate", translatePath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var resp translateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.TranslatedText, nil
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warn("%s %s -> %d in %s (request %s)", op, path, resp.StatusCode, time.Since(start), requestID)
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(detail)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	log.Debug("%s %s -> %d in %s (request %s)", op, path, resp.StatusCode, time.Since(start), requestID)
	return data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartImage(img Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(img.Name)))
	contentType := img.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Payload); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
