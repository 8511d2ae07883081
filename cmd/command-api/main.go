package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/cargotrail/project/internal/app/commandapi"
	"github.com/cargotrail/project/internal/app/query"
	"github.com/cargotrail/project/internal/dispatch"
	"github.com/cargotrail/project/internal/eventlog"
	"github.com/cargotrail/project/internal/platform/dbpool"
	"github.com/cargotrail/project/internal/platform/env"
	"github.com/cargotrail/project/internal/platform/metrics"
	"github.com/cargotrail/project/internal/platform/natsutil"
	"github.com/cargotrail/project/internal/platform/snapshot"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commandAddr := env.String("COMMAND_API_ADDR", env.DefaultCommandAddr)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	waitTimeout := env.Duration("PROJECTION_WAIT_TIMEOUT", 5*time.Second)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	eventLog := eventlog.NewPostgresLog(pool)
	if err := waitForEventLogSchema(runCtx, pool, eventLog, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	dispatcher := dispatch.NewDispatcher(eventLog, publisher.Publish)
	dispatcher.MaxRetries = env.Int("DISPATCH_MAX_RETRIES", 3)
	dispatcher.Snapshots = connectSnapshotCache(runCtx)

	service := commandapi.NewService(dispatcher)
	inventory := query.NewInventoryRepository(pool)
	containers := query.NewContainerReader(eventLog)
	handler := commandapi.NewHandler(service, inventory, containers, waitTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              commandAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Command API listening on %s\n", commandAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("command-api graceful shutdown failed: %v", err)
	}
}

// connectSnapshotCache wires the optional Redis replay cache. A missing or
// unreachable Redis is not fatal: the dispatcher falls back to full replay.
func connectSnapshotCache(ctx context.Context) dispatch.SnapshotCache {
	addr := env.String("REDIS_ADDR", env.DefaultRedisAddr)
	if addr == "" || addr == "off" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("snapshot cache disabled, redis unreachable at %s: %v", addr, err)
		_ = client.Close()
		return nil
	}
	return snapshot.NewRedisCache(client, env.Duration("SNAPSHOT_TTL", 10*time.Minute))
}

func waitForEventLogSchema(ctx context.Context, pool *pgxpool.Pool, eventLog *eventlog.PostgresLog, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = eventLog.EnsureSchema(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for postgres readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
