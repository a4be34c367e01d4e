package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ARDEV04/Personal-file-manager/internal/auth"
	"github.com/ARDEV04/Personal-file-manager/internal/blob"
	"github.com/ARDEV04/Personal-file-manager/internal/config"
	"github.com/ARDEV04/Personal-file-manager/internal/database"
	"github.com/ARDEV04/Personal-file-manager/internal/handlers"
	"github.com/ARDEV04/Personal-file-manager/internal/logger"
	"github.com/ARDEV04/Personal-file-manager/internal/middleware"
	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/ARDEV04/Personal-file-manager/internal/tree"
	"github.com/ARDEV04/Personal-file-manager/internal/ws"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogPretty); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	store := tree.New(pool)
	if cfg.SeedDemo {
		if _, err := store.SeedDemo(ctx); err != nil {
			return err
		}
	}

	blobs, err := blob.NewDisk(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: newRouter(cfg, pool, store, blobs, hub),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Bool("auth", cfg.AuthEnabled()).Msg("starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, pool *pgxpool.Pool, store *tree.Store, blobs *blob.Disk, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger.Component("http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	files := handlers.NewFileHandler(store, blobs, hub, cfg.MaxUploadBytes)
	blobPattern := blobRoute(cfg.UploadBaseURL)

	var tokens *auth.Tokens
	if cfg.AuthEnabled() {
		tokens = auth.NewTokens(cfg.JWTSecret)
		authHandler := handlers.NewAuthHandler(database.NewUsers(pool), tokens)
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))
			r.Mount("/api/files", files.Routes(middleware.RequireRole(models.RoleOwner, models.RoleEditor)))
			r.Get(blobPattern, files.ServeBlob)
		})
	} else {
		log.Warn().Msg("JWT_SECRET not set, the file API is open to everyone")
		r.Mount("/api/files", files.Routes())
		r.Get(blobPattern, files.ServeBlob)
	}

	r.Get("/ws", handlers.ServeWs(hub, tokens))
	return r
}

// blobRoute is the route serving BlobRef URLs built from baseURL. Only the path of an
// absolute base URL is routed.
func blobRoute(baseURL string) string {
	prefix := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		prefix = u.Path
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if prefix == "/" {
		prefix = ""
	}
	return prefix + "/{key}"
}
