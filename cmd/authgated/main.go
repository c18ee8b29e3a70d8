// Command authgated runs the member authentication service: the HTTP API,
// the Redis-backed session store, and Postgres account persistence.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	authgate "github.com/pressops/authgate"
	"github.com/pressops/authgate/accounts/postgres"
	"github.com/pressops/authgate/httpapi"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "authgated").Logger()
	if os.Getenv("LOG_PRETTY") == "true" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("service exited")
	}
}

func run(log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := authgate.DefaultConfig()
	cfg.Token.AccessSecret = []byte(os.Getenv("AUTH_ACCESS_SECRET"))
	cfg.Token.RefreshSecret = []byte(os.Getenv("AUTH_REFRESH_SECRET"))
	cfg.Token.AccessTTL = envDuration("AUTH_ACCESS_TTL", cfg.Token.AccessTTL)
	cfg.Token.RefreshTTL = envDuration("AUTH_REFRESH_TTL", cfg.Token.RefreshTTL)
	cfg.Provision.URL = os.Getenv("PROVISION_URL")
	if seed := os.Getenv("AUTH_KEY_SEED"); seed != "" {
		parsed, err := strconv.ParseUint(seed, 0, 32)
		if err != nil {
			return errors.New("AUTH_KEY_SEED must be a 32-bit unsigned integer")
		}
		cfg.Keys.Seed = uint32(parsed)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, envOr("DATABASE_URL", "postgres://localhost:5432/authgate"))
	if err != nil {
		return err
	}
	defer pool.Close()

	accounts := postgres.NewProvider(pool)
	if err := accounts.Migrate(ctx); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithAccounts(accounts).
		WithMetrics(authgate.NewMetrics(registry)).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{envOr("CORS_ORIGIN", "*")},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", cfg.Headers.Access, cfg.Headers.Refresh},
		ExposedHeaders:   []string{cfg.Headers.Access, cfg.Headers.Refresh},
		AllowCredentials: true,
	}))

	router.Mount("/", httpapi.NewHandler(engine, log).Routes())
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "session store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              envOr("LISTEN_ADDR", ":8080"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
