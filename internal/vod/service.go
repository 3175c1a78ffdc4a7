package vod

import (
	"log/slog"
	"net/http"
	"os"
)

// Service ties the pipeline together: it stages uploads, drives the
// transcoder, records manifest locations, and resolves playback paths.
// All path construction goes through Resolve so the write side and the read
// side can never drift apart.
type Service struct {
	store      Store
	transcoder *Transcoder
	receiver   *Receiver
	root       string
	log        *slog.Logger
}

// NewService wires a Service over the given collaborators. root must match
// the transcoder's streaming root.
func NewService(store Store, transcoder *Transcoder, receiver *Receiver, root string, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		transcoder: transcoder,
		receiver:   receiver,
		root:       root,
		log:        log,
	}
}

// ProcessUpload stages the request's video file, transcodes it, and records
// the manifest location against the lesson. The store write happens strictly
// after the transcoder verified its output; a failed transcode leaves the
// lesson record untouched. The staged file is removed best-effort on success
// and kept for diagnosis on failure.
func (s *Service) ProcessUpload(w http.ResponseWriter, r *http.Request, lessonID string) (string, error) {
	if err := ValidateLessonID(lessonID); err != nil {
		return "", err
	}

	staged, err := s.receiver.Receive(w, r)
	if err != nil {
		return "", err
	}

	manifest, err := s.transcoder.Transcode(r.Context(), staged, lessonID)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateLessonVideoURL(r.Context(), lessonID, manifest); err != nil {
		return "", err
	}

	if err := os.Remove(staged); err != nil {
		s.log.Warn("staging cleanup failed",
			slog.String("lesson_id", lessonID),
			slog.String("path", staged),
			slog.String("error", err.Error()),
		)
	}
	return manifest, nil
}

// ManifestPath resolves the lesson's manifest and confirms it is ready for
// playback. A missing or empty manifest maps to ErrNotFound; a transcode in
// progress therefore looks like "not yet ready" to players, never like a
// half-served asset.
func (s *Service) ManifestPath(lessonID string) (string, error) {
	path, err := Resolve(s.root, lessonID, "")
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	if info.IsDir() || info.Size() == 0 {
		return "", ErrNotFound
	}
	return path, nil
}

// SegmentPath resolves a segment file for the lesson. Validation happens
// entirely before the filesystem is touched.
func (s *Service) SegmentPath(lessonID, fileName string) (string, error) {
	path, err := Resolve(s.root, lessonID, fileName)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// ActiveTranscodes reports in-flight transcode count for metrics.
func (s *Service) ActiveTranscodes() int {
	return s.transcoder.Active()
}
