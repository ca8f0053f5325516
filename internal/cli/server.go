package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/config"
	"live-quiz-engine/internal/infra/memory"
	"live-quiz-engine/internal/infra/postgres"
	"live-quiz-engine/internal/infra/redis"
	"live-quiz-engine/internal/ratelimit"
	transport "live-quiz-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Durable stores: postgres when configured, in-process maps otherwise.
	var (
		keyStore     app.AnswerKeyStore
		participants app.ParticipantStore
		analyticsDB  app.AnalyticsStore
	)
	if pool != nil {
		keyStore = postgres.NewAnswerKeyStore(pool)
		participants = postgres.NewParticipantStore(pool)
		analyticsDB = postgres.NewAnalyticsStore(pool)
	} else {
		keyStore = memory.NewAnswerKeyStore()
		participants = memory.NewParticipantStore()
		analyticsDB = memory.NewAnalyticsStore()
	}

	// Hot state: redis when configured.
	cacheTTL := config.TTLDuration(cfg.AnswerKey.CacheTTL, 5*time.Minute)
	var (
		keys      app.AnswerKeyRepository
		snapshots app.SnapshotStore
		counters  app.LiveCounterStore
	)
	if redisClient != nil {
		keys = redis.NewAnswerKeyRepository(redisClient, keyStore, cacheTTL)
		snapshots = redis.NewSnapshotStore(redisClient, redisTTL)
		counters = redis.NewLiveCounterStore(redisClient, redisTTL)
	} else {
		keys = memory.NewAnswerKeyRepository(keyStore, cacheTTL)
		snapshots = memory.NewSnapshotStore()
		counters = memory.NewLiveCounterStore()
	}

	sessions := memory.NewSessionStore()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Requests > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			Requests: cfg.RateLimit.Requests,
			Window:   config.TTLDuration(cfg.RateLimit.Window, time.Second),
		})
		defer limiter.Close()
	}

	leaderboard := app.NewLeaderboardService(sessions, participants, keys, snapshots)
	submissions := app.NewSubmissionService(sessions, participants, keys, counters, limiter)
	sessionSvc := app.NewSessionService(sessions, participants, keyStore, leaderboard, submissions)
	analytics := app.NewAnalyticsService(sessions, participants, keys, analyticsDB)

	wsHandler := transport.NewWSHandler(sessionSvc, submissions, leaderboard, analytics)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
