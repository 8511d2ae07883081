package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/cargotrail/project/internal/app/projector"
	"github.com/cargotrail/project/internal/platform/dbpool"
	"github.com/cargotrail/project/internal/platform/env"
	"github.com/cargotrail/project/internal/platform/metrics"
	"github.com/cargotrail/project/internal/platform/natsutil"
)

func main() {
	ctx := context.Background()

	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	metricsAddr := env.String("PROJECTOR_METRICS_ADDR", ":9091")

	pool, err := dbpool.New(ctx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	repository := projector.NewPostgresRepository(pool)
	if err := waitForPostgres(ctx, pool, repository, 30*time.Second); err != nil {
		log.Fatal(err)
	}
	service := projector.NewService(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(natsURL, 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	sub, err := client.JS.QueueSubscribe("container.event.>", "inventory-projector", func(msg *nats.Msg) {
		applyCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := service.Handle(applyCtx, msg.Data); err != nil {
			if errors.Is(err, projector.ErrInvalidEventPayload) {
				log.Printf("discarding invalid event payload: %v", err)
				_ = msg.Term()
				return
			}
			if errors.Is(err, projector.ErrUnsupportedEventKind) {
				log.Printf("discarding unsupported event kind: %v", err)
				_ = msg.Term()
				return
			}
			// Transient repository failure: redeliver, the dedup marker
			// keeps the retry from double-counting.
			log.Printf("inventory update failed: %v", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.DefaultHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("projector metrics server stopped: %v", err)
		}
	}()

	log.Println("Inventory Projector listening on subject:", sub.Subject)

	// Keep alive
	select {}
}

func waitForPostgres(
	ctx context.Context,
	pool *pgxpool.Pool,
	repository *projector.PostgresRepository,
	timeout time.Duration,
) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = repository.EnsureSchema(attemptCtx)
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
