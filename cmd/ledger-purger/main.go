package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	orderspostgres "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/persistence/postgres"
	platformpostgres "github.com/Apurer/bookshop-order-service/internal/platform/postgres"
)

// ledger-purger trims processed dispatch deliveries from the PostgreSQL ledger. Run it from cron.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.ConnectOptional(ctx, os.Getenv("POSTGRES_DSN"), logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot purge delivery ledger")
	}

	retention := retentionFromEnv()
	removed, err := orderspostgres.NewDeliveryLedger(db).PurgeOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		log.Fatalf("failed to purge delivery ledger: %v", err)
	}
	logger.Info("delivery ledger purge completed", slog.Int64("removed", removed), slog.Duration("retention", retention))
}

func retentionFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("DELIVERY_RETENTION_HOURS"))
	if raw == "" {
		return orderspostgres.DefaultDeliveryRetention
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return orderspostgres.DefaultDeliveryRetention
	}
	return time.Duration(hours) * time.Hour
}
