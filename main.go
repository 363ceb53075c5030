package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"paystream-cloud/internal/audit"
	"paystream-cloud/internal/auth"
	"paystream-cloud/internal/eventing"
	"paystream-cloud/internal/eventing/eventbus"
	eventingrepo "paystream-cloud/internal/eventing/infrastructure/postgres"
	governanceapp "paystream-cloud/internal/governance/application"
	governancerepo "paystream-cloud/internal/governance/infrastructure/postgres"
	governancehttp "paystream-cloud/internal/governance/interfaces/http"
	ledgerapp "paystream-cloud/internal/ledger/application"
	ledgerrepo "paystream-cloud/internal/ledger/infrastructure/postgres"
	ledgerhttp "paystream-cloud/internal/ledger/interfaces/http"
	"paystream-cloud/internal/observability/metrics"
	"paystream-cloud/internal/streams/alerting"
	streamsapp "paystream-cloud/internal/streams/application"
	streamsevents "paystream-cloud/internal/streams/application/events"
	streamsrepo "paystream-cloud/internal/streams/infrastructure/postgres"
	streamsinterfaces "paystream-cloud/internal/streams/interfaces"
	streamshttp "paystream-cloud/internal/streams/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	accountChecker := auth.NewAccountChecker(db)
	auditRepo := audit.NewRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(streamsevents.StreamTransitioned{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.TenantID, baseBus)

	transitionConsumer, err := streamsinterfaces.NewStreamTransitionedConsumer(auditRepo)
	if err != nil {
		logger.Fatalf("transition consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[streamsevents.StreamTransitioned](), "streams.audit", func(ctx context.Context, event any) error {
		evt, ok := event.(streamsevents.StreamTransitioned)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return transitionConsumer.Consume(ctx, evt)
	}, processedStore)

	ledgerStore := ledgerrepo.NewStore(db)
	balances, err := ledgerapp.NewService(ledgerStore)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}

	governor, err := governanceapp.NewService(governancerepo.NewRepository(db))
	if err != nil {
		logger.Fatalf("governance service error: %v", err)
	}

	streamRepo := streamsrepo.NewStreamRepository(db)
	eventRepo := streamsrepo.NewEventRepository(db)
	streamService, err := streamsapp.NewService(streamRepo, eventRepo, balances,
		streamsapp.WithGovernor(governor),
		streamsapp.WithAccountDirectory(accountChecker),
		streamsapp.WithPublisher(publisher),
	)
	if err != nil {
		logger.Fatalf("stream service error: %v", err)
	}

	streamHandler, err := streamshttp.NewHandler(streamService, auditRepo)
	if err != nil {
		logger.Fatalf("stream handler error: %v", err)
	}
	accountHandler, err := ledgerhttp.NewHandler(balances, auditRepo)
	if err != nil {
		logger.Fatalf("account handler error: %v", err)
	}
	agentHandler, err := governancehttp.NewHandler(governor)
	if err != nil {
		logger.Fatalf("agent handler error: %v", err)
	}

	alertCfg, err := alerting.LoadConfig()
	if err != nil {
		logger.Fatalf("alerting config error: %v", err)
	}
	if alertCfg.Enabled {
		channel, err := alerting.NewWebhookChannel(alertCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("alert channel error: %v", err)
		}
		template, err := alerting.NewTemplate(alertCfg.Template)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		checker, err := alerting.NewChecker(streamRepo, channel,
			alerting.WithTemplate(template),
			alerting.WithInterval(alertCfg.ParseInterval(time.Minute)),
			alerting.WithCooldown(alertCfg.ParseCooldown(6*time.Hour)),
			alerting.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("runway checker error: %v", err)
		}
		go checker.Run(context.Background())
		logger.Printf("runway alerting enabled, webhook %s", alertCfg.WebhookURL)
	}

	go func() {
		ticker := time.NewTicker(cfg.OutboxInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := dispatcher.Dispatch(context.Background(), 100); err != nil {
				logger.Printf("outbox dispatch failed: %v", err)
			}
		}
	}()

	authPolicy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics"},
		nil,
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/streams", streamHandler)
	mux.Handle("/api/v1/streams/", streamHandler)
	mux.Handle("/api/v1/accounts", accountHandler)
	mux.Handle("/api/v1/accounts/", accountHandler)
	mux.Handle("/api/v1/agents/", agentHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	TenantID       string
	JWTSecret      string
	OutboxInterval time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:       getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		OutboxInterval: getenvDuration("OUTBOX_DISPATCH_INTERVAL", 2*time.Second),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
