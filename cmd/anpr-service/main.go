package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"parking-anpr-service/internal/config"
	httpapi "parking-anpr-service/internal/http"
	"parking-anpr-service/internal/logger"
	"parking-anpr-service/internal/recognizer"
	"parking-anpr-service/internal/repository"
	"parking-anpr-service/internal/service"
	"parking-anpr-service/internal/video"
)

func main() {
	configPath := flag.String("config", os.Getenv("ANPR_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped with error")
	}
	log.Info().Msg("service stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	var spots repository.SpotRepository
	if cfg.Registry.Remote() {
		spots = repository.NewRemoteSpotRepository(cfg.Registry.URL, cfg.Registry.Timeout)
		log.Info().Str("url", cfg.Registry.URL).Msg("using remote spot registry")
	} else {
		spots = repository.NewMemorySpotRepository()
	}

	var (
		rec     recognizer.Recognizer
		exposed recognizer.Recognizer
	)
	switch cfg.Recognizer.Mode {
	case config.RecognizerModeExec:
		local := recognizer.NewExecRecognizer(cfg.Recognizer.AlprBinary, cfg.Recognizer.Country, log)
		rec, exposed = local, local
	default:
		rec = recognizer.NewHTTPRecognizer(cfg.Recognizer.URL, cfg.Recognizer.Timeout, log)
	}

	anprService := service.NewANPRService(
		rec,
		spots,
		video.NewFFmpegOpener(cfg.Video.FFmpegBinary, log),
		video.JPEGEncoder{Quality: cfg.Video.JPEGQuality},
		log,
	)
	parkingService := service.NewParkingService(spots, log)

	handler := httpapi.NewHandler(anprService, parkingService, exposed, cfg, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpapi.NewRouter(handler, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Int("port", cfg.HTTP.Port).
			Str("recognizer_mode", cfg.Recognizer.Mode).
			Int("video_stride", cfg.Video.Stride).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
