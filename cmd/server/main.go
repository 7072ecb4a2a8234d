package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	agentservice "findash/internal/agent/service"
	agenthttp "findash/internal/agent/transport/http"
	alertservice "findash/internal/alert/service"
	alerthttp "findash/internal/alert/transport/http"
	auditrepository "findash/internal/auditlog/repository"
	auditservice "findash/internal/auditlog/service"
	audithttp "findash/internal/auditlog/transport/http"
	"findash/internal/config"
	marketservice "findash/internal/market/service"
	markethttp "findash/internal/market/transport/http"
	"findash/internal/metrics"
	"findash/internal/payment"
	paymentrepository "findash/internal/payment/repository"
	paymentservice "findash/internal/payment/service"
	paymenthttp "findash/internal/payment/transport/http"
	rescueservice "findash/internal/rescue/service"
	rescuehttp "findash/internal/rescue/transport/http"
	subscriptionrepository "findash/internal/subscription/repository"
	subscriptionservice "findash/internal/subscription/service"
	subscriptionhttp "findash/internal/subscription/transport/http"
	treasuryservice "findash/internal/treasury/service"
	treasuryhttp "findash/internal/treasury/transport/http"
	"findash/internal/user"
	userrepository "findash/internal/user/repository"
	userservice "findash/internal/user/service"
	userhttp "findash/internal/user/transport/http"
	walletservice "findash/internal/wallet/service"
	wallethttp "findash/internal/wallet/transport/http"
	"findash/pkg/db"
	"findash/pkg/httpx"
	"findash/pkg/logger"
	"findash/pkg/middleware"
)

var server *http.Server

// demoMapping is used when no mapping file is present.
var demoMapping = payment.Mapping{
	CustomerID: "cus_demo",
	Subscriptions: map[string]string{
		"Netflix":      "sub_demo_netflix",
		"Spotify":      "sub_demo_spotify",
		"Amazon Prime": "sub_demo_prime",
		"ChatGPT Plus": "sub_demo_chatgpt",
		"Apple Music":  "sub_demo_applemusic",
	},
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.Level)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.Info("findash API starting")
	metrics.InitMetrics()

	ctx := context.Background()

	// --- STORAGE ---
	var database *sqlx.DB
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("database connection failed")
		}
		defer database.Close()
		log.Info("connected to PostgreSQL")
	}

	var auditRepo auditservice.Repository
	var subRepo subscriptionservice.SubscriptionRepository
	var userRepo user.Repository
	switch {
	case database != nil:
		ar := auditrepository.NewPostgresRepo(database)
		sr := subscriptionrepository.NewPostgresRepo(database)
		ur := userrepository.NewPostgresUserRepository(database)
		for name, ensure := range map[string]func(context.Context) error{
			"audit_log":     ar.EnsureSchema,
			"subscriptions": sr.EnsureSchema,
			"users":         ur.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				log.WithError(err).WithField("table", name).Fatal("schema setup failed")
			}
		}
		auditRepo, subRepo, userRepo = ar, sr, ur
	case cfg.AuditLogFile != "":
		fr, err := auditrepository.NewFileRepo(cfg.AuditLogFile)
		if err != nil {
			log.WithError(err).Fatal("audit log file unavailable")
		}
		auditRepo = fr
	default:
		auditRepo = auditrepository.NewMemoryRepo()
	}
	if subRepo == nil {
		subRepo = subscriptionrepository.NewMemoryRepo()
	}
	if userRepo == nil {
		userRepo = userrepository.NewMemoryRepository()
	}

	// --- SERVICES ---
	relay := auditservice.NewRelay(auditRepo, cfg.LogMaxEntries, log)
	if err := relay.Load(ctx); err != nil {
		log.WithError(err).Warn("starting with an empty audit log")
	}

	var priceSource marketservice.PriceSource
	if !cfg.MockPrices {
		priceSource = marketservice.NewBinanceSource()
	}
	prices := marketservice.NewService(priceSource, cfg.PriceCacheTTL, cfg.MockPrices, log)

	var ledger walletservice.Ledger = walletservice.NewMockLedger(cfg.DemoWallet)
	if cfg.ChainRPCURL != "" {
		rpc := httpx.New(httpx.Options{Name: "chain-rpc", ProxyAddr: cfg.OutboundProxy, Timeout: 15 * time.Second, Logger: log})
		ledger = walletservice.NewChainLedger(rpc, cfg.ChainRPCURL, cfg.USDCContract)
	}
	wallets := walletservice.NewService(ledger, prices, relay, walletservice.Options{DemoWallet: cfg.DemoWallet, Explorer: cfg.ExplorerURL}, log)

	subs := subscriptionservice.NewService(subRepo, relay, log)

	var circle *treasuryservice.Client
	if cfg.CircleAPIKey != "" {
		h := httpx.New(httpx.Options{
			Name:      "circle",
			ProxyAddr: cfg.OutboundProxy,
			Header:    http.Header{"Authorization": []string{"Bearer " + cfg.CircleAPIKey}},
			Logger:    log,
		})
		circle = treasuryservice.NewClient(h, cfg.CircleBaseURL, cfg.CircleBlockchain)
	}
	treasury := treasuryservice.NewService(circle, relay, log)

	var mappings paymentservice.MappingStore = paymentrepository.NewStaticMapping(demoMapping)
	if _, err := os.Stat(cfg.StripeMappingFile); err == nil {
		mappings = paymentrepository.NewFileMapping(cfg.StripeMappingFile)
	}
	var gateway paymentservice.Gateway = paymentservice.NewMockGateway()
	if cfg.StripeSecretKey != "" {
		h := httpx.New(httpx.Options{
			Name:      "stripe",
			ProxyAddr: cfg.OutboundProxy,
			Header:    http.Header{"Authorization": []string{"Bearer " + cfg.StripeSecretKey}},
			Logger:    log,
		})
		gateway = paymentservice.NewStripeGateway(h, cfg.StripeBaseURL)
	}
	payments := paymentservice.NewService(mappings, gateway, relay, log)

	rescue := rescueservice.NewService(wallets, payments, relay, map[string]string{
		"DEMO_WALLET":   cfg.DemoWallet,
		"JUDGE_WALLET":  cfg.JudgeWallet,
		"BACKUP_WALLET": cfg.BackupWallet,
	}, log)

	alerts := alertservice.NewService(cfg.AlertMaxEntries, cfg.DemoWallet, relay, log)
	checker := alertservice.NewChecker(alerts, alertservice.CheckerDeps{
		Prices:        prices,
		Wallet:        wallets,
		Subscriptions: subs,
		Treasury:      treasury,
		Users:         cfg.AlertUsers,
	}, log)

	users := userservice.NewUserService(userRepo, subs, relay, log)

	var upstream *agentservice.Upstream
	if cfg.AgentMode == "api" || (cfg.AgentMode == "auto" && cfg.AgentURL != "") {
		upstream = &agentservice.Upstream{
			Client:  httpx.New(httpx.Options{Name: "agent", ProxyAddr: cfg.OutboundProxy, Timeout: cfg.AgentTimeout + 5*time.Second, Logger: log}),
			URL:     cfg.AgentURL,
			Timeout: cfg.AgentTimeout,
		}
	}
	assistant := agentservice.NewService(upstream, agentservice.Tools{
		Prices:        prices,
		Wallet:        wallets,
		Subscriptions: subs,
		Alerts:        alerts,
		Rescue:        rescue,
		JudgeWallet:   cfg.JudgeWallet,
	}, relay, log)

	// --- HANDLERS ---
	logHandler := audithttp.NewHandler(relay, cfg.AllowedOrigins, log)
	subHandler := subscriptionhttp.NewSubscriptionHandler(subs)
	alertHandler := alerthttp.NewHandler(alerts, checker)
	walletHandler := wallethttp.NewHandler(wallets)
	marketHandler := markethttp.NewHandler(prices)
	treasuryHandler := treasuryhttp.NewHandler(treasury, cfg.DemoWallet)
	paymentHandler := paymenthttp.NewHandler(payments)
	rescueHandler := rescuehttp.NewHandler(rescue)
	userHandler := userhttp.NewHandler(users, cfg.JWTSecret)
	agentHandler := agenthttp.NewHandler(assistant)

	// --- ROUTER ---
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	}
	r.Get("/", health)
	r.Get("/health", health)
	r.With(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword)).Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware)

		api.Route("/subscriptions", subHandler.Routes)
		api.Route("/alerts", alertHandler.Routes)
		api.Route("/rescue", rescueHandler.Routes)
		api.Route("/users", userHandler.Routes)
		api.Route("/agent", agentHandler.Routes)

		api.Route("/logs", logHandler.Routes)

		api.Get("/crypto/price", marketHandler.GetPrice)
		api.Get("/prices/{symbol}", marketHandler.GetPrice)
		api.Get("/crypto/health", walletHandler.Health)
		api.Get("/crypto/wallet/balance", walletHandler.Balance)
		api.Get("/crypto/wallet/transfers", walletHandler.Transfers)
		api.Post("/crypto/transfer", walletHandler.Transfer)
		api.Post("/crypto/check_tx", walletHandler.CheckTx)

		api.Get("/circle/health", treasuryHandler.Health)
		api.Get("/circle/balances", treasuryHandler.Balances)
		api.Post("/circle/mint", treasuryHandler.Mint)
		api.Post("/circle/redeem", treasuryHandler.Redeem)

		api.Post("/payments/cancel", paymentHandler.Cancel)
		api.Post("/payments/refund", paymentHandler.Refund)
	})

	if err := checker.Start(cfg.AlertCheckSchedule); err != nil {
		log.WithError(err).Fatal("alert checker schedule")
	}

	server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"agent":    assistant.Mode(),
		"treasury": treasury.Mode(),
		"payments": payments.Mode(),
		"ledger":   wallets.LedgerName(),
	}).Info("server running")

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Info("shutdown signal received, starting graceful shutdown")
		checker.Stop()
		close(stopCleanup)
		shutdownServer(log)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
}

func shutdownServer(log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	log.Info("server stopped")
}
