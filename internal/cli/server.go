package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	pgusers "live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
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

	var loader memory.UserLoader = memory.NewStaticUserLoader(sampleUsers())
	if pool != nil {
		loader = pgusers.NewUserLoader(pool)
	}

	userTTL := config.TTLDuration(cfg.Users.TTL, 10*time.Minute)
	var users app.UserDirectory
	if redisClient != nil {
		users = redisinfra.NewUserDirectory(redisClient, loader, userTTL)
	} else {
		users = memory.NewUserDirectory(loader, userTTL)
	}

	var rooms app.RoomStore
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, redisTTL)
	} else {
		rooms = memory.NewRoomStore()
	}

	registry := transport.NewRegistry()
	dispatcher := transport.NewDispatcher(registry)
	service := app.NewLiveService(app.Config{
		Rooms:              rooms,
		Users:              users,
		Broadcast:          dispatcher,
		MaxParticipants:    cfg.Live.MaxParticipants,
		AdvanceDelay:       config.TTLDuration(cfg.Live.AdvanceDelay, time.Second),
		CancelGrace:        config.TTLDuration(cfg.Live.CancelGrace, 5*time.Second),
		DefaultQuestionSec: cfg.Live.DefaultQuestionSec,
	})
	defer service.Close()

	wsHandler := transport.NewWSHandler(service, registry, dispatcher)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting live quiz service on :%s", finalPort)
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

// sampleUsers provides a minimal demo directory; production points the loader
// at the auth database instead.
func sampleUsers() map[string]domain.User {
	return map[string]domain.User{
		"admin": {ID: "admin", Username: "Quiz Host", IsAdmin: true},
		"u1":    {ID: "u1", Username: "Alice"},
		"u2":    {ID: "u2", Username: "Bob"},
		"u3":    {ID: "u3", Username: "Carol"},
		"u4":    {ID: "u4", Username: "Dave"},
	}
}
