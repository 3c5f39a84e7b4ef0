// Package openai provides an stt.Transcriber backed by the OpenAI audio
// transcription API (whisper-1 or the gpt-4o transcribe family).
//
// Audio is wrapped in a WAV container before upload; the API does not accept
// raw PCM. The API reports no per-utterance confidence, so Transcribe returns
// Confidence 1.0.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/auricle-ai/auricle/pkg/provider/stt"
)

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithBaseURL overrides the API base URL, for OpenAI-compatible gateways.
func WithBaseURL(url string) Option {
	return func(t *Transcriber) {
		t.baseURL = url
	}
}

// WithTimeout sets the per-request timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(t *Transcriber) {
		t.timeout = d
	}
}

// Transcriber implements stt.Transcriber via the OpenAI audio API.
type Transcriber struct {
	client  oai.Client
	model   string
	baseURL string
	timeout time.Duration
}

// New creates a Transcriber authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: api key must not be empty")
	}
	t := &Transcriber{
		model:   string(oai.AudioModelWhisper1),
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(t)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: t.timeout}),
	}
	if t.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(t.baseURL))
	}
	t.client = oai.NewClient(clientOpts...)
	return t, nil
}

// Transcribe uploads the utterance as a WAV file and returns the API's text.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error) {
	if len(pcm) == 0 {
		return stt.Result{}, nil
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	wav := encodeWAV(pcm, sampleRate, channels)

	params := oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(t.model),
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
	}
	if cfg.Language != "" {
		params.Language = param.NewOpt(cfg.Language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcription request: %w", err)
	}

	return stt.Result{Text: strings.TrimSpace(resp.Text), Confidence: 1.0}, nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
