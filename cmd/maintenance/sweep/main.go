package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/clock"
	"github.com/vrental/booking-service/internal/config"
	"github.com/vrental/booking-service/internal/database"
	"github.com/vrental/booking-service/internal/models"
	"github.com/vrental/booking-service/internal/services"
)

// One-shot expiration pass for deployments where the server's cron is
// disabled or an operator needs to catch up after downtime.
func main() {
	var (
		dbURLFlag string
		job       string
		batchSize int
		kafka     string
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&job, "job", "all", "which sweeper to run: soft-locks, orders or all")
	flag.IntVar(&batchSize, "batch", 500, "rows per bulk read")
	flag.StringVar(&kafka, "kafka-brokers", "", "comma separated brokers; expiry events are only logged when empty")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	var notifier services.Notifier = services.NotifierFunc(func(_ context.Context, n models.Notification) {
		logger.WithFields(logrus.Fields{
			"kind":     n.Kind,
			"order_id": n.OrderID,
			"user_id":  n.UserID,
		}).Info("Expiry event (not delivered)")
	})
	if kafka != "" {
		topic := os.Getenv("KAFKA_LIFECYCLE_TOPIC")
		if topic == "" {
			topic = "booking.lifecycle"
		}
		kafkaNotifier := services.NewKafkaNotifier(strings.Split(kafka, ","), topic, logger)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	clk := clock.NewSystem()
	sweepers := map[string]services.Sweeper{
		"soft-locks": services.NewSoftLockReaper(database.NewSoftLockRepository(db.DB), clk, batchSize, logger),
		"orders":     services.NewOrderExpirer(database.NewOrderRepository(db.DB), notifier, clk, batchSize, logger),
	}

	names := []string{job}
	if job == "all" {
		names = []string{"soft-locks", "orders"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	failed := false
	for _, name := range names {
		sweeper, ok := sweepers[name]
		if !ok {
			log.Fatalf("unknown job %q (want soft-locks, orders or all)", name)
		}
		n, err := sweeper.RunOnce(ctx)
		if err != nil {
			fmt.Printf("  %s: error: %v\n", name, err)
			failed = true
			continue
		}
		fmt.Printf("  %s: %d expired\n", name, n)
	}
	if failed {
		os.Exit(1)
	}
}
