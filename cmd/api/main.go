package main

import (
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"net/smtp"
	"os"
	"strconv"
	"time"

	"github.com/soloflow-app/soloflow/auth"
	"github.com/soloflow-app/soloflow/broker"
	"github.com/soloflow-app/soloflow/client"
	"github.com/soloflow-app/soloflow/db"
	"github.com/soloflow-app/soloflow/gateway"
	"github.com/soloflow-app/soloflow/invoice"
	"github.com/soloflow-app/soloflow/project"
	"github.com/soloflow-app/soloflow/report"
	"github.com/soloflow-app/soloflow/subscription"
	"github.com/soloflow-app/soloflow/timeentry"
	"github.com/soloflow-app/soloflow/user"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
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
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
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
			"component": "api",
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

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

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

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	authManager, err := auth.New(auth.Options{
		Redis:  rdb,
		Logger: logger,

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		Environment: authEnvironment,
		SMTPAuth:    smtpAuth,
		From:        os.Getenv("SMTP_FROM"),
		Hostname:    os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		EmailOption: auth.EmailOption{
			Name: os.Getenv("SITE_NAME"),
			LinkGenerator: func(uid, token string) string {
				return fmt.Sprintf("%s/login/%s/%s", os.Getenv("SITE_URL"), uid, token)
			},
		},
	})
	if err != nil {
		logger.Fatal("Cannot initialize AuthManager",
			zap.Error(err),
		)
	}

	gatewayClient, err := gateway.NewClient(gateway.Options{
		BaseURL:       os.Getenv("GATEWAY_URL"),
		KeyID:         os.Getenv("GATEWAY_KEY_ID"),
		KeySecret:     os.Getenv("GATEWAY_KEY_SECRET"),
		WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize gateway Client",
			zap.Error(err),
		)
	}

	userManager, err := user.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize UserManager",
			zap.Error(err),
		)
	}

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

	clientManager, err := client.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ClientManager",
			zap.Error(err),
		)
	}

	projectManager, err := project.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ProjectManager",
			zap.Error(err),
		)
	}

	entryManager, err := timeentry.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize EntryManager",
			zap.Error(err),
		)
	}

	invoiceManager, err := invoice.NewManager(logger, db, entryManager)
	if err != nil {
		logger.Fatal("Cannot initialize InvoiceManager",
			zap.Error(err),
		)
	}

	reportManager, err := report.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ReportManager",
			zap.Error(err),
		)
	}

	proPriceCents, err := strconv.ParseInt(os.Getenv("PRO_PRICE_CENTS"), 10, 64)
	if err != nil {
		logger.Fatal("Cannot parse PRO_PRICE_CENTS",
			zap.Error(err),
		)
	}

	userRouter, err := user.NewService(user.Options{
		Auth:        authManager,
		UserManager: userManager,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize User Service Router",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		SubscriptionManager: subscriptionManager,
		Gateway:             gatewayClient,
		Logger:              logger,
		ProPriceCents:       proPriceCents,
		Currency:            os.Getenv("PRO_CURRENCY"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	webhookRouter, err := subscription.NewWebhook(subscription.WebhookOptions{
		SubscriptionManager: subscriptionManager,
		Gateway:             gatewayClient,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Webhook Router",
			zap.Error(err),
		)
	}

	clientRouter, err := client.NewService(client.ServiceOptions{
		ClientManager:       clientManager,
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Client Service Router",
			zap.Error(err),
		)
	}

	projectRouter, err := project.NewService(project.ServiceOptions{
		ProjectManager:      projectManager,
		ClientManager:       clientManager,
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Project Service Router",
			zap.Error(err),
		)
	}

	entryRouter, err := timeentry.NewService(timeentry.ServiceOptions{
		EntryManager:   entryManager,
		ProjectManager: projectManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize TimeEntry Service Router",
			zap.Error(err),
		)
	}

	invoiceRouter, err := invoice.NewService(invoice.ServiceOptions{
		InvoiceManager:      invoiceManager,
		ClientManager:       clientManager,
		ProjectManager:      projectManager,
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Invoice Service Router",
			zap.Error(err),
		)
	}

	reportRouter, err := report.NewService(report.ServiceOptions{
		ReportManager:       reportManager,
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Report Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{os.Getenv("SITE_URL")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	rootRouter.Mount("/users", userRouter.Router())
	rootRouter.Mount("/webhooks/billing", webhookRouter.Router())

	rootRouter.Group(func(r chi.Router) {
		r.Use(authManager.Middleware())
		r.Use(authManager.ClaimCheck())
		r.Mount("/subscriptions", subscriptionRouter.Router())
		r.Mount("/clients", clientRouter.Router())
		r.Mount("/projects", projectRouter.Router())
		r.Mount("/entries", entryRouter.Router())
		r.Mount("/invoices", invoiceRouter.Router())
		r.Mount("/reports", reportRouter.Router())
	})

	rootRouter.HandleFunc("/pprof/*", pprof.Index)
	rootRouter.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	rootRouter.HandleFunc("/pprof/profile", pprof.Profile)
	rootRouter.HandleFunc("/pprof/symbol", pprof.Symbol)
	rootRouter.HandleFunc("/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    os.Getenv("API_ADDR"),
	}

	logger.Info("API listening",
		zap.String("Addr", srv.Addr),
	)
	log.Fatalln(srv.ListenAndServe())
}
