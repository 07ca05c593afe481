// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fitcenter-checkout/internal/config"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/domain/ports/repository"
	"fitcenter-checkout/internal/infra/adapters/gateway"
	"fitcenter-checkout/internal/infra/adapters/prompt"
	"fitcenter-checkout/internal/infra/api"
	"fitcenter-checkout/internal/infra/api/apiv1"
	"fitcenter-checkout/internal/infra/backend"
	pg "fitcenter-checkout/internal/infra/db/postgres"
	"fitcenter-checkout/internal/infra/i18n"
	"fitcenter-checkout/internal/infra/logging"
	"fitcenter-checkout/internal/infra/memstore"
	"fitcenter-checkout/internal/infra/metrics"
	red "fitcenter-checkout/internal/infra/redis"
	"fitcenter-checkout/internal/infra/sched"
	"fitcenter-checkout/internal/infra/security"
	"fitcenter-checkout/internal/infra/worker"
	"fitcenter-checkout/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// memberTokenHeader carries an optional backend member token, forwarded on backend calls.
const memberTokenHeader = "X-Member-Token"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled: PII is logged unredacted")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Encryption ----
	var cipher red.Cipher
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		cipher = enc
	} else {
		logger.Warn().Msg("security.encryption_key not set; cached customer details are stored in plain text")
	}

	// ---- Redis (optional) ----
	var (
		customers repository.CustomerCache = memstore.NewCustomerCache()
		locker    adapter.Locker
		limiter   adapter.RateLimiter
		rc        *red.Client
	)
	if cfg.Redis.URL != "" {
		rc, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		customers = red.NewCustomerCache(rc, cipher, cfg.Redis.TTL)
		locker = red.NewLocker(rc)
		limiter = red.NewRateLimiter(rc)
	} else {
		logger.Warn().Msg("redis.url not set; using in-process customer cache, no rate limit or cross-replica lock")
	}

	// ---- Postgres (optional) ----
	var (
		attempts repository.AttemptRepository = memstore.NewAttemptRepo()
		tm       repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		attempts = pg.NewAttemptRepo(pool)
		tm = pg.NewTxManager(pool)
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
	} else {
		logger.Warn().Msg("database.url not set; attempt journal is in memory")
	}

	// ---- Backend ----
	backendClient, err := backend.NewClient(cfg.Backend, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}
	var plans adapter.PlanSource = backendClient
	if rc != nil {
		plans = red.NewPlanCacheDecorator(backendClient, rc, cfg.Redis.TTL, logger)
	}

	// ---- Gateway ----
	brand := gateway.Branding{
		Name:        cfg.Gateway.Name,
		Description: cfg.Gateway.Description,
		ThemeColor:  cfg.Gateway.ThemeColor,
	}
	var (
		gw        adapter.PaymentGateway
		callbacks apiv1.CallbackSink
	)
	switch cfg.Gateway.Mode {
	case "sandbox":
		sb := cfg.Gateway.Sandbox
		gw = gateway.NewSandboxGateway(sb.Secret, sb.Outcome, sb.Delay, brand, logger)
		logger.Warn().Str("outcome", sb.Outcome).Msg("sandbox gateway: payments are scripted")
	default:
		relay := gateway.NewRelayGateway(cfg.Gateway.Name, brand, logger)
		gw, callbacks = relay, relay
	}

	// ---- Use cases ----
	catalogUC := usecase.NewCatalogUseCase(plans, logger)
	checkoutUC := usecase.NewCheckoutUseCase(usecase.CheckoutDeps{
		Catalog:  catalogUC,
		Details:  usecase.NewCustomerDetailsUseCase(customers, logger, cfg.Runtime.Dev),
		Methods:  usecase.NewPaymentMethodUseCase(logger, cfg.Runtime.Dev),
		Orders:   usecase.NewOrderUseCase(backendClient, cfg.Checkout.OrderTimeout, logger),
		Verifier: usecase.NewVerificationUseCase(backendClient, cfg.Checkout.VerifyTimeout, logger),
		Gateway:  gw,
		Attempts: attempts,
		TM:       tm,
		Locker:   locker,
		Limiter:  limiter,
	}, usecase.CheckoutOptions{
		StartLimitPerMinute: cfg.Checkout.StartLimitPerMinute,
		LockTTL:             cfg.Checkout.IdleTTL + cfg.Checkout.VerifyTimeout,
	}, logger)

	// ---- Workers ----
	// Flows outlive the signal context so verifying attempts can finish during shutdown.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	workers := worker.NewPool(cfg.Checkout.MaxConcurrent, logger)
	workers.Start(runCtx)

	sweeper := sched.NewIdleSweeper(cfg.Checkout.SweepInterval, cfg.Checkout.IdleTTL, checkoutUC, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP API ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Checkout.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	srv := apiv1.NewServer(apiv1.Deps{
		Catalog:    catalogUC,
		Checkout:   checkoutUC,
		Prompter:   prompt.NewChannelPrompter(),
		Callbacks:  callbacks,
		Runner:     workers,
		Translator: translator,
		Auth:       api.NewAuthManager(cfg.Security.JWTSecret, cfg.Security.SessionTTL),
	}, apiv1.Options{RequestTimeout: cfg.HTTP.RequestTimeout}, logger)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           forwardMemberToken(srv.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("gateway", gw.Name()).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancelRuns()
	workers.Stop()
	logger.Info().Msg("bye")
}

// forwardMemberToken lets the browser pass its backend member token through to backend calls.
func forwardMemberToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get(memberTokenHeader); tok != "" {
			r = r.WithContext(backend.WithBearer(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}
