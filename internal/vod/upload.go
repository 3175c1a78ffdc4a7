package vod

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// UploadField is the multipart form field carrying the video file.
const UploadField = "video"

// Receiver stages raw uploads on disk prior to transcoding. Staged files are
// owned by the caller once Receive returns; they are safe to delete after a
// successful transcode.
type Receiver struct {
	stagingDir string
	maxBytes   int64
}

// NewReceiver returns a Receiver writing into stagingDir. maxBytes <= 0
// disables the request size bound.
func NewReceiver(stagingDir string, maxBytes int64) *Receiver {
	return &Receiver{stagingDir: stagingDir, maxBytes: maxBytes}
}

// Receive extracts the single video file from a multipart request and writes
// it to the staging directory under a collision-resistant name preserving the
// original extension. The staging directory is created if missing.
func (rc *Receiver) Receive(w http.ResponseWriter, r *http.Request) (string, error) {
	if rc.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rc.maxBytes)
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", ErrNoUploadFile
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", ErrUploadTooLarge
		}
		return "", fmt.Errorf("read multipart body: %w", err)
	}
	defer file.Close()

	if err := os.MkdirAll(rc.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	dst := filepath.Join(rc.stagingDir, stagingName(header.Filename))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return dst, nil
}

// stagingName builds a timestamp+uuid name so concurrent uploads never
// collide. The original extension is kept only when it is safe to embed in a
// path.
func stagingName(original string) string {
	ext := filepath.Ext(filepath.Base(original))
	if ext != "" && !safeName.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)
}
