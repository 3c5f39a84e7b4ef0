package whisper

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auricle-ai/auricle/pkg/provider/stt"
)

func TestServerTranscribe(t *testing.T) {
	t.Parallel()

	var gotLanguage, gotModel string
	var gotWAV []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		gotWAV, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  what is a binary tree  "}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL, WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := make([]byte, 960)
	res, err := s.Transcribe(context.Background(), pcm, stt.Config{
		SampleRate: 16000,
		Channels:   1,
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "what is a binary tree" {
		t.Errorf("text = %q, want trimmed transcript", res.Text)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0", res.Confidence)
	}
	if gotLanguage != "en" {
		t.Errorf("language field = %q, want en", gotLanguage)
	}
	if gotModel != "base.en" {
		t.Errorf("model field = %q, want base.en", gotModel)
	}
	if len(gotWAV) != 44+len(pcm) {
		t.Errorf("wav upload = %d bytes, want %d", len(gotWAV), 44+len(pcm))
	}
}

func TestServerTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model busy", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Transcribe(context.Background(), make([]byte, 64), stt.Config{}); err == nil {
		t.Fatal("Transcribe did not surface HTTP 500")
	}
}

func TestServerTranscribeEmptyAudio(t *testing.T) {
	t.Parallel()

	s, err := New("http://unused")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Transcribe(context.Background(), nil, stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "" {
		t.Errorf("text = %q, want empty for empty audio", res.Text)
	}
}

func TestNewRequiresServerURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New accepted empty server URL")
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 320)
	wav := encodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != len(pcm) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
}

func TestPCMToFloat32Mono(t *testing.T) {
	t.Parallel()

	// Two stereo frames: (16384, -16384) and (0, 32767 ≈ 1.0).
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(-16384)))
	binary.LittleEndian.PutUint16(buf[4:], uint16(int16(0)))
	binary.LittleEndian.PutUint16(buf[6:], uint16(int16(16384)))

	out := pcmToFloat32Mono(buf, 2)
	if len(out) != 2 {
		t.Fatalf("frames = %d, want 2", len(out))
	}
	if out[0] != 0 {
		t.Errorf("frame 0 = %f, want 0 (downmix cancels)", out[0])
	}
	if out[1] != 0.25 {
		t.Errorf("frame 1 = %f, want 0.25", out[1])
	}
}
