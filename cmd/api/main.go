package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/learncode/internal/application"
	appanalysis "github.com/bryanwahyu/learncode/internal/application/analysis"
	appexplain "github.com/bryanwahyu/learncode/internal/application/explanation"
	"github.com/bryanwahyu/learncode/internal/application/identity"
	"github.com/bryanwahyu/learncode/internal/config"
	domai "github.com/bryanwahyu/learncode/internal/domain/ai"
	domanalysis "github.com/bryanwahyu/learncode/internal/domain/analysis"
	domexplain "github.com/bryanwahyu/learncode/internal/domain/explanation"
	domuser "github.com/bryanwahyu/learncode/internal/domain/user"
	aiopenai "github.com/bryanwahyu/learncode/internal/infra/ai/openai"
	rediscache "github.com/bryanwahyu/learncode/internal/infra/cache/redis"
	"github.com/bryanwahyu/learncode/internal/infra/db"
	mysqlp "github.com/bryanwahyu/learncode/internal/infra/db/mysql"
	"github.com/bryanwahyu/learncode/internal/infra/db/postgres"
	"github.com/bryanwahyu/learncode/internal/infra/db/sqlite"
	"github.com/bryanwahyu/learncode/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/learncode/internal/infra/storage"
	"github.com/bryanwahyu/learncode/internal/middleware"
)

type stores struct {
	analyses     domanalysis.Repository
	explanations domexplain.Cache
	users        domuser.Repository
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("config load error")
	}
	setupLogger(cfg)

	ctx := context.Background()

	// koneksi database dibuka saat pertama dipakai
	pool := db.NewLazy(opener(cfg))
	defer pool.Close()
	if _, err := pool.Get(ctx); err != nil {
		log.Warn().Err(err).Str("driver", cfg.Database.Driver).Msg("database not reachable yet, will retry on first request")
	}

	st := newStores(cfg.Database.Driver, pool)
	checkers := map[string]middleware.HealthChecker{"database": pool}

	// explanation cache: SQL table by default, redis when configured
	if cfg.Cache.Backend == "redis" {
		rc, err := rediscache.New(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.TTL)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Cache.Redis.Addr).Msg("redis init error")
		}
		defer rc.Close()
		st.explanations = rc
		checkers["redis"] = rc
	}

	// init AI client; tanpa API key service tetap jalan, explain pakai fallback
	var aiClient domai.Client
	oc, err := aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, &http.Client{Timeout: cfg.AI.Timeout})
	switch {
	case errors.Is(err, domai.ErrMissingCredentials):
		log.Warn().Msg("ai.apiKey is empty, analysis is disabled and explanations fall back")
	case err != nil:
		log.Fatal().Err(err).Msg("ai client init error")
	default:
		aiClient = oc
	}

	// init minio (optional)
	var archive domanalysis.Archive
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.Prefix,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		archive = store
	}

	clock := application.SystemClock{}

	// init services
	analysisSvc := &appanalysis.Service{
		Repo:    st.analyses,
		AI:      aiClient,
		Archive: archive,
		Clock:   clock,
	}
	explainSvc := &appexplain.Service{
		Analyses: st.analyses,
		Cache:    st.explanations,
		AI:       aiClient,
		Clock:    clock,
		TTL:      cfg.Cache.TTL,
	}
	identitySvc := identity.NewService(st.users, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, clock)

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(analysisSvc, explainSvc, identitySvc, httpserver.Options{
		FederationKey:  cfg.Auth.FederationKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthCheckers: checkers,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 15*time.Second, // analyze blocks on the provider call
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func opener(cfg *config.Config) db.OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		switch cfg.Database.Driver {
		case "mysql":
			return mysqlp.Connect(ctx, cfg.MySQLDSN())
		case "postgres":
			return postgres.Connect(ctx, cfg.PostgresDSN())
		default:
			return sqlite.Connect(ctx, cfg.Database.Path)
		}
	}
}

func newStores(driver string, pool db.Pool) stores {
	switch driver {
	case "mysql":
		return stores{
			analyses:     mysqlp.NewAnalysisRepository(pool),
			explanations: mysqlp.NewExplanationRepository(pool),
			users:        mysqlp.NewUserRepository(pool),
		}
	case "postgres":
		return stores{
			analyses:     postgres.NewAnalysisRepository(pool),
			explanations: postgres.NewExplanationRepository(pool),
			users:        postgres.NewUserRepository(pool),
		}
	default:
		return stores{
			analyses:     sqlite.NewAnalysisRepository(pool),
			explanations: sqlite.NewExplanationRepository(pool),
			users:        sqlite.NewUserRepository(pool),
		}
	}
}
