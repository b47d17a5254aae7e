package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/codelens/codelens/internal/api"
	"github.com/codelens/codelens/internal/config"
	"github.com/codelens/codelens/internal/db"
	"github.com/codelens/codelens/internal/execx"
	"github.com/codelens/codelens/internal/fetch"
	"github.com/codelens/codelens/internal/ffmpeg"
	"github.com/codelens/codelens/internal/frames"
	"github.com/codelens/codelens/internal/jobs"
	"github.com/codelens/codelens/internal/pipeline"
	"github.com/codelens/codelens/internal/progress"
	"github.com/codelens/codelens/internal/repository"
	"github.com/codelens/codelens/internal/scheduler"
	"github.com/codelens/codelens/internal/snippets"
	"github.com/codelens/codelens/internal/transcode"
	"github.com/codelens/codelens/internal/transcribe"
)

func main() {
	log.Println("CodeLens starting...")

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, "migrations"); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	cfg.MergeFromDB(database.DB)

	if err := os.MkdirAll(cfg.FramesDir, 0o755); err != nil {
		log.Fatalf("frames dir: %v", err)
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		log.Fatalf("temp dir: %v", err)
	}

	store := progress.NewStore()
	queue := jobs.NewQueue(cfg.RedisAddr, cfg.MaxJobs)
	srv := api.NewServer(cfg, database, queue, store)

	runner := &execx.OSRunner{}
	probe := ffmpeg.NewFFprobe(cfg.FFprobePath)
	fetcher := fetch.NewFetcher(
		fetch.NewYtDlpStrategy(cfg.YtDlpPath, runner, cfg.FetchTimeout),
		fetch.NewLibraryStrategy(),
	)
	transcoder := transcode.NewTranscoder(cfg.FFmpegPath, probe, runner)
	transcriber := transcribe.NewTranscriber(cfg.PythonPath, cfg.WhisperScript, cfg.WhisperModel, cfg.TranscribeTimeout, runner)
	extractor := frames.NewExtractor(cfg.PythonPath, cfg.FrameScript, cfg.FramesDir, runner, cfg.TranscribeTimeout)

	var synth pipeline.Synthesizer
	if cfg.SnippetsEnabled() {
		synth = snippets.NewSynthesizer(cfg.OpenAIKey, cfg.OpenAIModel)
	} else {
		log.Println("snippet synthesis disabled (no OpenAI key)")
	}

	sink := repository.NewSink(
		repository.NewVideoRepository(database.DB),
		repository.NewTranscriptRepository(database.DB),
		repository.NewFrameRepository(database.DB),
		repository.NewSnippetRepository(database.DB),
	)

	pipe := pipeline.New(fetcher, transcoder, transcriber, extractor, synth,
		sink, store, srv.WSHub(), cfg.TempDir, cfg.FramesEnabled)

	queue.RegisterHandler(jobs.TaskProcessVideo, jobs.NewProcessVideoHandler(pipe))
	if err := queue.Start(context.Background()); err != nil {
		log.Fatalf("job queue failed to start: %v", err)
	}

	sweeper := scheduler.NewSweeper(store, cfg.TempDir)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("sweeper failed to start: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
	sweeper.Stop()
	queue.Stop()
}
