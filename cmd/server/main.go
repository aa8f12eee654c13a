package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/api"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/config"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/instrument"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/repository/postgres"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/scan"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/scpi"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/storage"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Server.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Open the session database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to reach database")
	}
	sessionRepo := postgres.NewPostgresSessionRepository(db)

	// Stores over the scan data folder
	scans, err := store.NewScanStore(cfg.Data.ScanDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open scan data folder")
	}
	markers := store.NewMarkerStore(cfg.Data.MarkersFile)

	// Optional S3-compatible archive
	var archive storage.ArchiveService
	if cfg.AWS.S3Bucket != "" {
		archive, err = storage.NewArchiveService(storage.ArchiveConfig{
			Bucket:    cfg.AWS.S3Bucket,
			Prefix:    cfg.AWS.S3Prefix,
			Endpoint:  cfg.AWS.S3Endpoint,
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up scan archive")
		}
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Scan archive enabled")
	}

	// Instrument connection and scan engine
	dialCtx, dialCancel := context.WithTimeout(context.Background(), cfg.Instrument.Timeout)
	client, err := scpi.Dial(dialCtx, cfg.Instrument.Addr, cfg.Instrument.Timeout, log.Logger)
	dialCancel()
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Instrument.Addr).Msg("Failed to connect to the spectrum analyzer")
	}
	defer client.Close()

	analyzer := instrument.NewAnalyzer(client, log.Logger)
	if idn, err := analyzer.Identify(); err == nil {
		log.Info().Str("idn", idn).Msg("Instrument connected")
	} else {
		log.Warn().Err(err).Msg("Instrument did not answer *IDN?")
	}

	engine := scan.NewEngine(sessionRepo, scans, archive, analyzer, cfg.Instrument.SegmentHz, log.Logger)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create Huma API
	humaCfg := huma.DefaultConfig("OPEN-AIR API", "1.0.0")
	humaCfg.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaCfg)

	api.RegisterRoutes(router, humaAPI, scans, markers, sessionRepo, engine, archive)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("Starting OPEN-AIR API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_ip", r.RemoteAddr).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("user_agent", r.UserAgent()).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
