package vod

import (
	"errors"
	"fmt"
	"time"
)

// ManifestName is the fixed playlist file name inside a lesson's asset directory.
const ManifestName = "index.m3u8"

// Lesson is the persisted record a transcoded video is attached to.
// Only the fields this pipeline touches are modeled; the rest of the lesson
// row is owned by the CRUD layer.
type Lesson struct {
	ID        string
	Title     string
	VideoURL  string
	UpdatedAt time.Time
}

var (
	// ErrInvalidLessonID is returned for empty, sentinel ("null"/"undefined"),
	// or unsafe lesson identifiers.
	ErrInvalidLessonID = errors.New("invalid lesson id")

	// ErrInvalidFileName is returned for file names containing characters
	// outside the safe set [A-Za-z0-9._-].
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrPathEscape is returned when a resolved path would leave the
	// streaming root, or when the input carries traversal constructs.
	ErrPathEscape = errors.New("path escapes streaming root")

	// ErrNotFound is returned when a requested manifest or segment does not
	// exist, or a lesson record is absent from the store.
	ErrNotFound = errors.New("not found")

	// ErrTranscodeBusy is returned when a transcode for the same lesson is
	// already in flight. The caller should retry after the current run ends.
	ErrTranscodeBusy = errors.New("transcode already in progress for lesson")

	// ErrNoUploadFile is returned when the multipart request carries no
	// "video" file field.
	ErrNoUploadFile = errors.New("video file is required")

	// ErrUploadTooLarge is returned when the multipart body exceeds the
	// configured upload size bound.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

// TranscodeError describes a failed external transcoder run. The stderr tail
// is intended for logs only and must never be sent to clients.
type TranscodeError struct {
	ExitCode int
	Timeout  bool
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	if e.Timeout {
		return "transcode timed out"
	}
	if e.Err != nil {
		return fmt.Sprintf("transcode failed: %v", e.Err)
	}
	return fmt.Sprintf("transcode failed: exit code %d", e.ExitCode)
}

func (e *TranscodeError) Unwrap() error { return e.Err }
