package vod

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"lesson-vod/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	manifestContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

// Stable client-facing error messages. Diagnostic detail stays in the logs.
const (
	msgInvalidLessonID = "lesson id is invalid"
	msgInvalidFileName = "segment file name contains illegal characters"
	msgAccessDenied    = "access denied"
	msgManifestMissing = "playlist file does not exist"
	msgSegmentMissing  = "segment file does not exist"
	msgTranscodeBusy   = "a transcode for this lesson is already in progress"
	msgTranscodeFailed = "transcode failed"
	msgUploadFailed    = "upload failed"
	msgVideoRequired   = "video file is required"
	msgUploadTooLarge  = "video file exceeds the upload size limit"
	msgUploadComplete  = "upload complete, transcode finished"
	msgInternalFailure = "internal error"
)

// Handler exposes the VOD pipeline's HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// GetPlaylist handles GET /lessons/{lesson_id}/playlist.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lesson_id")

	path, err := h.svc.ManifestPath(lessonID)
	if err != nil {
		h.writeResolveError(w, r, err, msgManifestMissing)
		return
	}
	h.streamFile(w, path, manifestContentType, msgManifestMissing)
}

// GetSegment handles GET /lessons/{lesson_id}/segment/{file}.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lesson_id")
	fileName := chi.URLParam(r, "file")
	// chi hands back the raw (still escaped) path chunk; decode it so that
	// encoded separators are judged by their real meaning.
	if decoded, err := url.PathUnescape(fileName); err == nil {
		fileName = decoded
	}

	path, err := h.svc.SegmentPath(lessonID, fileName)
	if err != nil {
		h.writeResolveError(w, r, err, msgSegmentMissing)
		return
	}
	h.streamFile(w, path, segmentContentType, msgSegmentMissing)
}

// UploadVideo handles POST /lessons/{lesson_id}/video (multipart field "video").
// The lesson record is updated only after the transcode has been verified.
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lesson_id")

	if _, err := h.svc.ProcessUpload(w, r, lessonID); err != nil {
		switch {
		case errors.Is(err, ErrInvalidLessonID):
			writeJSONError(w, http.StatusBadRequest, msgInvalidLessonID)
		case errors.Is(err, ErrNoUploadFile):
			writeJSONError(w, http.StatusBadRequest, msgVideoRequired)
		case errors.Is(err, ErrUploadTooLarge):
			writeJSONError(w, http.StatusRequestEntityTooLarge, msgUploadTooLarge)
		case errors.Is(err, ErrTranscodeBusy):
			h.log.Info("upload rejected, transcode in flight", slog.String("lesson_id", lessonID))
			writeJSONError(w, http.StatusConflict, msgTranscodeBusy)
		default:
			var terr *TranscodeError
			if errors.As(err, &terr) {
				// Root cause already logged by the transcoder.
				if h.metrics != nil {
					h.metrics.IncTranscodeFailures()
				}
				writeJSONError(w, http.StatusInternalServerError, msgTranscodeFailed)
				return
			}
			h.log.Error("upload failed",
				slog.String("lesson_id", lessonID),
				slog.String("error", err.Error()),
			)
			writeJSONError(w, http.StatusInternalServerError, msgUploadFailed)
		}
		return
	}

	h.log.Info("lesson video ready", slog.String("lesson_id", lessonID))
	if h.metrics != nil {
		h.metrics.IncUploads()
		h.metrics.IncTranscodes()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  msgUploadComplete,
		"lessonId": lessonID,
	})
}

// writeResolveError maps resolver/stat failures onto the error taxonomy:
// invalid input is 400, traversal is 403 (and logged as a potential attack),
// a missing asset is 404.
func (h *Handler) writeResolveError(w http.ResponseWriter, r *http.Request, err error, missingMsg string) {
	switch {
	case errors.Is(err, ErrInvalidLessonID):
		writeJSONError(w, http.StatusBadRequest, msgInvalidLessonID)
	case errors.Is(err, ErrInvalidFileName):
		writeJSONError(w, http.StatusBadRequest, msgInvalidFileName)
	case errors.Is(err, ErrPathEscape):
		h.log.Warn("path escape rejected",
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)
		if h.metrics != nil {
			h.metrics.IncPathEscapes()
		}
		writeJSONError(w, http.StatusForbidden, msgAccessDenied)
	case errors.Is(err, ErrNotFound):
		writeJSONError(w, http.StatusNotFound, missingMsg)
	default:
		h.log.Error("asset lookup failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSONError(w, http.StatusInternalServerError, msgInternalFailure)
	}
}

// streamFile serves the file at path with the given content type. A read
// failure after the response has started cannot be reported to the client;
// the copy is abandoned and the error logged.
func (h *Handler) streamFile(w http.ResponseWriter, path, contentType, missingMsg string) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, http.StatusNotFound, missingMsg)
			return
		}
		h.log.Error("open asset failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, msgInternalFailure)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.log.Error("stream aborted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
