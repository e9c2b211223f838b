package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lendex/config"
	"lendex/core/audit"
	"lendex/native/bank"
	"lendex/native/lending"
	"lendex/observability"
	"lendex/observability/logging"
	serviceconfig "lendex/services/lendingd/config"
	"lendex/services/lendingd/server"
	"lendex/storage"
)

func main() {
	var cfgPath string
	var serviceCfgPath string
	flag.StringVar(&cfgPath, "config", "config.toml", "path to the node configuration")
	flag.StringVar(&serviceCfgPath, "service-config", "lendingd.yaml", "path to the HTTP service configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	serviceCfg, err := serviceconfig.Load(serviceCfgPath)
	if err != nil {
		log.Fatalf("load service config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("LENDEX_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.SetupWithOptions("lendexd", env, logging.Options{FilePath: cfg.LogFile})

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	engine, auditLog, err := buildEngine(cfg, db)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	if err := registerAssets(cfg, engine); err != nil {
		log.Fatalf("register assets: %v", err)
	}

	srv := server.New(server.Config{
		Engine:    engine,
		AuditLog:  auditLog,
		Logger:    logger,
		Metrics:   observability.Lending(),
		Auth:      serviceCfg.Auth,
		RateLimit: serviceCfg.RateLimit,
	})
	httpServer := &http.Server{
		Addr:              serviceCfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendexd listening", "address", serviceCfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server stop", "err", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func buildEngine(cfg *config.Config, db storage.Database) (*lending.Engine, *audit.Log, error) {
	store := lending.NewStore(db)
	vault := bank.NewVault(db, cfg.CustodyAccount())
	auditLog := audit.NewLog(db, nil)

	oracle := lending.NewStaticOracle()
	for _, quote := range cfg.Oracle {
		oracle.SetQuote(quote.Symbol, big.NewInt(quote.Price), big.NewInt(quote.Precision))
	}

	engine := lending.NewEngine(cfg.CollateralToken, lending.PriceKind(cfg.CollateralPrice), cfg.CollectorAccount())
	engine.SetState(store)
	engine.SetVault(vault)
	engine.SetOracle(oracle)
	engine.SetOperators(lending.NewStaticOperators(cfg.OperatorAccounts()...))
	engine.SetEmitter(auditLog)
	return engine, auditLog, nil
}

// registerAssets adds the configured debt assets that are not yet present in
// the ledger. Re-registration of an existing asset is not an error on
// restart.
func registerAssets(cfg *config.Config, engine *lending.Engine) error {
	operators := cfg.OperatorAccounts()
	if len(operators) == 0 {
		return errors.New("at least one operator is required to register assets")
	}
	existing, err := engine.ListAssets()
	if err != nil {
		return err
	}
	registered := make(map[string]bool, len(existing))
	for _, asset := range existing {
		registered[asset] = true
	}
	for _, asset := range cfg.DebtAssets {
		if registered[asset.Symbol] {
			continue
		}
		if err := engine.AddDebtAsset(operators[0], asset.AssetSpec()); err != nil {
			return err
		}
	}
	return nil
}
