package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/db"
	"github.com/soloflow-app/soloflow/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("ENV")
	if "production" == env {
		dotFile = ".env.production"
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: env,
		Debug:       env != "production",
	}); err != nil {
		log.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "task",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot initialize zapsentry",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	// Initialize backend connections
	db, err := db.New(db.Options{
		URI:    os.Getenv("POSTGRES_URI"),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	var pushBroker broker.Publisher
	switch os.Getenv("BROKER_DRIVER") {
	case "nats":
		pushBroker, err = broker.NewNATSBroker(logger, os.Getenv("NATS_URI"))
	default:
		pushBroker, err = broker.NewAMQPBroker(logger, os.Getenv("AMQP_URI"))
	}
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer pushBroker.Close()

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:        db,
		Publisher: pushBroker,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	subscriptionTask, err := subscription.NewTask(subscription.TaskOptions{
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot get subscription task",
			zap.Error(err),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runSweep := func() {
		summary, err := subscriptionTask.Sweep(ctx, time.Now())
		if err != nil {
			logger.Error("Subscription sweep failed",
				zap.Error(err),
			)
			return
		}
		logger.Info("Subscription sweep completed",
			zap.Int("Total", summary.Total),
			zap.Int("Processed", summary.Processed),
		)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Cannot initialize scheduler",
			zap.Error(err),
		)
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(runSweep),
	)
	if err != nil {
		logger.Fatal("Cannot schedule subscription sweep",
			zap.Error(err),
		)
	}

	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("Scheduler shutdown failed",
				zap.Error(err),
			)
		}
	}()

	// catch up immediately on boot so a missed schedule never extends
	// anyone's paid plan
	runSweep()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Task runner started")
	<-c
	logger.Info("Task runner stopping")
}
