// Package remote provides an ocr.Engine backed by an HTTP OCR sidecar.
//
// The sidecar contract is a single endpoint, POST /ocr, accepting the raw PNG
// as the request body (Content-Type image/png) and returning JSON:
//
//	{"text": "...", "confidence": 0.93}
//
// This matches the thin wrapper typically put in front of EasyOCR or
// Tesseract when the recognizer runs out of process.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/auricle-ai/auricle/pkg/capture"
	"github.com/auricle-ai/auricle/pkg/provider/ocr"
)

// Compile-time assertion that Engine implements ocr.Engine.
var _ ocr.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the default HTTP client (15 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// Engine implements ocr.Engine against a remote OCR service.
type Engine struct {
	serverURL  string
	httpClient *http.Client
}

// New creates an Engine that connects to the OCR service at serverURL
// (e.g., "http://localhost:8090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("ocr remote: serverURL must not be empty")
	}
	e := &Engine{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Recognize POSTs the PNG to the /ocr endpoint and parses the response.
func (e *Engine) Recognize(ctx context.Context, frame capture.ScreenFrame) (ocr.Result, error) {
	if len(frame.PNG) == 0 {
		return ocr.Result{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/ocr", bytes.NewReader(frame.PNG))
	if err != nil {
		return ocr.Result{}, fmt.Errorf("ocr remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("ocr remote: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ocr.Result{}, fmt.Errorf("ocr remote: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("ocr remote: read response body: %w", err)
	}

	var parsed struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ocr.Result{}, fmt.Errorf("ocr remote: parse JSON response: %w", err)
	}

	conf := parsed.Confidence
	if conf == 0 {
		conf = 1.0
	}
	return ocr.Result{Text: strings.TrimSpace(parsed.Text), Confidence: conf}, nil
}
