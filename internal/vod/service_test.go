package vod

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUploadRequest(t *testing.T, target, field, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestService(t *testing.T, stubScript string) (svc *Service, store *MemoryStore, root, stagingDir string) {
	t.Helper()
	root = t.TempDir()
	store = NewMemoryStore()
	stagingDir = filepath.Join(t.TempDir(), "staging")
	tr := NewTranscoder(root, writeStub(t, stubScript), 10, time.Minute, 2, testLogger())
	rc := NewReceiver(stagingDir, 1<<20)
	return NewService(store, tr, rc, root, testLogger()), store, root, stagingDir
}

func TestService_ProcessUpload_success(t *testing.T) {
	svc, store, root, stagingDir := newTestService(t, stubOK)

	req := newUploadRequest(t, "/lessons/42/video", UploadField, "clip.mp4", []byte("mp4-bytes"))
	rec := httptest.NewRecorder()

	manifest, err := svc.ProcessUpload(rec, req, "42")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lesson_42", ManifestName), manifest)

	// Record written only after verified transcode.
	l, err := store.GetLesson(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, manifest, l.VideoURL)

	// Staged upload cleaned up on success.
	staged, err := os.ReadDir(stagingDir)
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestService_ProcessUpload_transcodeFailureLeavesStoreUntouched(t *testing.T) {
	svc, store, _, _ := newTestService(t, "exit 1\n")

	req := newUploadRequest(t, "/lessons/9/video", UploadField, "clip.mp4", []byte("corrupt"))
	rec := httptest.NewRecorder()

	_, err := svc.ProcessUpload(rec, req, "9")
	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)

	_, err = store.GetLesson(context.Background(), "9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ProcessUpload_invalidLessonID(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubOK)

	req := newUploadRequest(t, "/lessons/null/video", UploadField, "clip.mp4", []byte("x"))
	rec := httptest.NewRecorder()

	_, err := svc.ProcessUpload(rec, req, "null")
	assert.ErrorIs(t, err, ErrInvalidLessonID)
}

func TestService_ProcessUpload_missingFileField(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubOK)

	req := newUploadRequest(t, "/lessons/1/video", "attachment", "clip.mp4", []byte("x"))
	rec := httptest.NewRecorder()

	_, err := svc.ProcessUpload(rec, req, "1")
	assert.ErrorIs(t, err, ErrNoUploadFile)
}

func TestService_ManifestPath(t *testing.T) {
	svc, _, root, _ := newTestService(t, stubOK)

	_, err := svc.ManifestPath("1")
	assert.ErrorIs(t, err, ErrNotFound)

	// An existing but empty manifest is still "not ready".
	dir := filepath.Join(root, "lesson_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), nil, 0o644))
	_, err = svc.ManifestPath("1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(samplePlaylist), 0o644))
	path, err := svc.ManifestPath("1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ManifestName), path)
}

func TestService_SegmentPath(t *testing.T) {
	svc, _, root, _ := newTestService(t, stubOK)
	dir := filepath.Join(root, "lesson_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index0.ts"), []byte("ts"), 0o644))

	path, err := svc.SegmentPath("1", "index0.ts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index0.ts"), path)

	_, err = svc.SegmentPath("1", "index1.ts")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SegmentPath("1", "../../secret.ts")
	assert.ErrorIs(t, err, ErrPathEscape)
}
