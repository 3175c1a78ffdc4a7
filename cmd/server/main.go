package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lesson-vod/internal/platform/config"
	"lesson-vod/internal/platform/logger"
	"lesson-vod/internal/platform/metrics"
	"lesson-vod/internal/vod"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	streamRoot := config.GetEnv("STREAM_ROOT", "data/hls")
	stagingRoot := config.GetEnv("STAGING_ROOT", "data/raw")
	ffmpegPath := config.GetEnv("FFMPEG_PATH", "ffmpeg")
	segmentSeconds := config.GetEnvInt("SEGMENT_SECONDS", vod.DefaultSegmentSeconds)
	transcodeTimeout := config.GetEnvDuration("TRANSCODE_TIMEOUT", 30*time.Minute)
	maxTranscodes := config.GetEnvInt64("MAX_CONCURRENT_TRANSCODES", 2)
	maxUploadBytes := config.GetEnvInt64("MAX_UPLOAD_BYTES", 2<<30)
	dbPath := config.GetEnv("DB_PATH", "")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	var store vod.Store
	if dbPath != "" {
		s, err := vod.OpenSQLiteStore(dbPath)
		if err != nil {
			log.Error("open lesson store", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	} else {
		store = vod.NewMemoryStore()
	}

	transcoder := vod.NewTranscoder(streamRoot, ffmpegPath, segmentSeconds, transcodeTimeout, maxTranscodes, log)
	receiver := vod.NewReceiver(stagingRoot, maxUploadBytes)
	svc := vod.NewService(store, transcoder, receiver, streamRoot, log)
	met := metrics.New()
	h := vod.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveTranscodes(svc.ActiveTranscodes()) }).ServeHTTP(w, r)
	})
	r.Route("/lessons/{lesson_id}", func(r chi.Router) {
		r.Get("/playlist", h.GetPlaylist)
		r.Get("/segment/{file}", h.GetSegment)
		r.Post("/video", h.UploadVideo)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"stream_root", streamRoot,
		"staging_root", stagingRoot,
		"segment_seconds", segmentSeconds,
		"max_concurrent_transcodes", maxTranscodes,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
