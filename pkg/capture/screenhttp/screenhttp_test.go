package screenhttp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auricle-ai/auricle/pkg/capture"
)

func TestCaptureFetchesPNG(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "image/png" {
			t.Errorf("Accept = %q, want image/png", got)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	t.Cleanup(srv.Close)

	src, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frame, err := src.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !bytes.Equal(frame.PNG, png) {
		t.Errorf("png = %v, want %v", frame.PNG, png)
	}
	if frame.Timestamp.IsZero() {
		t.Error("timestamp is zero")
	}
}

func TestCaptureErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no window", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	src, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = src.Capture(context.Background())
	if err == nil {
		t.Fatal("Capture accepted a 503 response")
	}
	if errors.Is(err, capture.ErrScreenFault) {
		t.Errorf("503 reported as permanent fault: %v", err)
	}
}

func TestCaptureForbiddenIsScreenFault(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "permission revoked", status)
		}))
		t.Cleanup(srv.Close)

		src, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		_, err = src.Capture(context.Background())
		if !errors.Is(err, capture.ErrScreenFault) {
			t.Errorf("status %d: error = %v, want wrapped screen fault", status, err)
		}
	}
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New accepted an empty url")
	}
}
