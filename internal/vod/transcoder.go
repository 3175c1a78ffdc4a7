package vod

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultSegmentSeconds is the fixed segment duration policy.
const DefaultSegmentSeconds = 10

// stderrTailBytes bounds how much transcoder stderr is kept for logging.
const stderrTailBytes = 2048

// killGraceDelay bounds how long Wait keeps the stderr pipe open after the
// process exited or its context was canceled.
const killGraceDelay = 3 * time.Second

// Transcoder wraps the external ffmpeg binary. It owns the per-lesson mutual
// exclusion required by the shared output directory: a second Transcode call
// for a lesson already in flight is rejected with ErrTranscodeBusy rather
// than queued, so the upload request's lifetime stays bounded. A weighted
// semaphore additionally caps how many ffmpeg processes run at once.
type Transcoder struct {
	root           string
	ffmpegPath     string
	segmentSeconds int
	timeout        time.Duration
	sem            *semaphore.Weighted
	log            *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewTranscoder returns a Transcoder writing lesson asset directories under
// root. maxConcurrent bounds simultaneous ffmpeg processes; values <= 0 mean 1.
// segmentSeconds <= 0 falls back to DefaultSegmentSeconds.
func NewTranscoder(root, ffmpegPath string, segmentSeconds int, timeout time.Duration, maxConcurrent int64, log *slog.Logger) *Transcoder {
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Transcoder{
		root:           root,
		ffmpegPath:     ffmpegPath,
		segmentSeconds: segmentSeconds,
		timeout:        timeout,
		sem:            semaphore.NewWeighted(maxConcurrent),
		log:            log,
		inFlight:       make(map[string]struct{}),
	}
}

// Active returns the number of transcodes currently in flight. Used for the
// active-transcodes gauge.
func (t *Transcoder) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}

func (t *Transcoder) begin(lessonID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inFlight[lessonID]; busy {
		return false
	}
	t.inFlight[lessonID] = struct{}{}
	return true
}

func (t *Transcoder) end(lessonID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, lessonID)
}

// Transcode runs ffmpeg over inputPath and produces the VOD asset for
// lessonID: a manifest plus numbered fixed-duration segments in
// lesson_<id>/ under the streaming root. It blocks until the process exits,
// is bounded by the configured timeout, and only returns the manifest path
// after verifying that the manifest is complete and every referenced segment
// exists. Re-invoking for the same lesson overwrites the previous asset.
func (t *Transcoder) Transcode(ctx context.Context, inputPath, lessonID string) (string, error) {
	manifestPath, err := Resolve(t.root, lessonID, "")
	if err != nil {
		return "", err
	}

	if !t.begin(lessonID) {
		return "", ErrTranscodeBusy
	}
	defer t.end(lessonID)

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer t.sem.Release(1)

	outDir := filepath.Dir(manifestPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &TranscodeError{Err: err}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := t.buildArgs(inputPath, outDir, manifestPath)
	cmd := exec.CommandContext(runCtx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg forks helpers that inherit the stderr pipe. Killing only the
	// direct child would leave cmd.Run blocked on the pipe until every
	// descendant exits, holding the lesson's busy slot and a semaphore
	// permit past the timeout. Kill the whole process group on cancel, and
	// let Wait abandon the pipes after a grace period for anything that
	// detached from the group.
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killGraceDelay

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		terr := &TranscodeError{
			ExitCode: -1,
			Timeout:  errors.Is(runCtx.Err(), context.DeadlineExceeded),
			Stderr:   tail(stderr.Bytes(), stderrTailBytes),
			Err:      runErr,
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			terr.ExitCode = exitErr.ExitCode()
		}
		t.log.Error("transcode failed",
			slog.String("lesson_id", lessonID),
			slog.Int("exit_code", terr.ExitCode),
			slog.Bool("timeout", terr.Timeout),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("stderr", terr.Stderr),
		)
		return "", terr
	}

	// Exit code 0 alone is not success: a truncated run must never be
	// recorded as playable.
	pl, err := VerifyComplete(manifestPath)
	if err != nil {
		t.log.Error("transcode output incomplete",
			slog.String("lesson_id", lessonID),
			slog.String("error", err.Error()),
		)
		return "", &TranscodeError{Err: err}
	}

	t.log.Info("transcode complete",
		slog.String("lesson_id", lessonID),
		slog.Int("segments", len(pl.Segments)),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return manifestPath, nil
}

// buildArgs mirrors the fixed encode policy: h264/aac, 10 second segments,
// unbounded VOD playlist, sequentially numbered segment files, manifest
// written last by ffmpeg.
func (t *Transcoder) buildArgs(inputPath, outDir, manifestPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-codec:v", "libx264",
		"-codec:a", "aac",
		"-start_number", "0",
		"-hls_time", strconv.Itoa(t.segmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outDir, "index%d.ts"),
		"-f", "hls",
		manifestPath,
	}
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
