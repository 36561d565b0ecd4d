package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a 2xx body does not have the
// expected JSON shape.
var ErrMalformedResponse = errors.New("invalid response format from server")

// Config holds the connection settings for the caption/translation backend.
type Config struct {
	BaseURL string
	// Timeout in seconds; zero leaves the transport's own behaviour.
	Timeout int
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// Image is the file uploaded to the caption endpoint.
type Image struct {
	Name     string
	MIMEType string
	Payload  []byte
}

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Op, e.StatusCode, e.Detail())
}

// Detail is the reply body, or the standard status text when it was empty.
func (e *StatusError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.StatusCode)
}

// TransportError means the backend could not be reached or the reply
// could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type captionResponse struct {
	Caption *string `json:"caption"`
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}
