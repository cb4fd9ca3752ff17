// Command reminders runs a single reminder batch and exits. It is meant for
// cron style schedulers and for checking what the server would send.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/notify"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/postgres"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/redis"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/logging"
	"github.com/jonboulle/clockwork"
)

const batchTimeout = 5 * time.Minute

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		leadTime    = flag.Duration("lead-time", 24*time.Hour, "Remind appointments starting within this window")
		dryRun      = flag.Bool("dry-run", false, "Only list due reminders, send nothing")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(os.Stdout, level, "text"))

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected", "redis", sanitizeURL(*redisURL))

	// No leader: the ledger keeps a concurrent server batch from sending twice.
	scheduler := app.NewReminderScheduler(
		postgres.NewAppointmentRepo(pool),
		postgres.NewProfileRepo(pool),
		notify.NewLogNotifier(slog.Default()),
		redis.NewReminderLedger(rdb),
		nil,
		clockwork.NewRealClock(),
		time.Hour, *leadTime,
		nil,
	)

	start := time.Now()
	batch, err := scheduler.RunBatch(ctx, *dryRun)
	if err != nil {
		log.Fatalf("Reminder batch failed: %v", err)
	}

	slog.Info("Reminder summary",
		"due", batch.Due,
		"sent", batch.Sent,
		"skipped", batch.Skipped,
		"failed", batch.Failed,
		"dry_run", *dryRun,
		"duration_ms", time.Since(start).Milliseconds())

	if batch.Failed > 0 {
		os.Exit(1)
	}
}

func sanitizeURL(url string) string {
	// Hide password in URL for logging
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			credParts := strings.Split(parts[0], ":")
			if len(credParts) >= 2 {
				return strings.Join(credParts[:len(credParts)-1], ":") + ":***@" + parts[1]
			}
		}
	}
	return url
}
