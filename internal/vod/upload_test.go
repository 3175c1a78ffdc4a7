package vod

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStagingName(t *testing.T) {
	a := stagingName("movie.mp4")
	b := stagingName("movie.mp4")
	if a == b {
		t.Errorf("staging names must not collide: %q", a)
	}
	if !strings.HasSuffix(a, ".mp4") {
		t.Errorf("expected original extension preserved, got %q", a)
	}

	// Hostile extensions are dropped, not embedded in the path.
	if n := stagingName("x./../evil"); strings.ContainsAny(n, `/\`) {
		t.Errorf("staging name %q contains a separator", n)
	}
}

func TestReceiver_createsStagingDir(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "nested", "raw")
	rc := NewReceiver(staging, 1<<20)

	req := newUploadRequest(t, "/lessons/1/video", UploadField, "clip.mp4", []byte("payload"))
	rec := httptest.NewRecorder()

	path, err := rc.Receive(rec, req)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("staged bytes = %q", got)
	}
	if filepath.Dir(path) != staging {
		t.Errorf("staged outside staging dir: %q", path)
	}
}

func TestReceiver_missingField(t *testing.T) {
	rc := NewReceiver(t.TempDir(), 1<<20)

	req := newUploadRequest(t, "/lessons/1/video", "other", "clip.mp4", []byte("payload"))
	rec := httptest.NewRecorder()

	if _, err := rc.Receive(rec, req); err != ErrNoUploadFile {
		t.Errorf("Receive = %v, want ErrNoUploadFile", err)
	}
}

func TestReceiver_sizeBound(t *testing.T) {
	rc := NewReceiver(t.TempDir(), 16)

	req := newUploadRequest(t, "/lessons/1/video", UploadField, "clip.mp4", make([]byte, 1024))
	rec := httptest.NewRecorder()

	if _, err := rc.Receive(rec, req); !errors.Is(err, ErrUploadTooLarge) {
		t.Errorf("Receive = %v, want ErrUploadTooLarge", err)
	}
}
