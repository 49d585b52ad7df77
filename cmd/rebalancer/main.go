package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recall-agent/portfolio-rebalancer/internal/advisor"
	"github.com/recall-agent/portfolio-rebalancer/internal/config"
	"github.com/recall-agent/portfolio-rebalancer/internal/engine"
	"github.com/recall-agent/portfolio-rebalancer/internal/exchange"
	"github.com/recall-agent/portfolio-rebalancer/internal/logger"
	"github.com/recall-agent/portfolio-rebalancer/internal/marketdata"
	"github.com/recall-agent/portfolio-rebalancer/internal/monitoring"
	"github.com/recall-agent/portfolio-rebalancer/internal/notifications"
	"github.com/recall-agent/portfolio-rebalancer/internal/risk"
	"github.com/recall-agent/portfolio-rebalancer/internal/safety"
	"github.com/recall-agent/portfolio-rebalancer/internal/venue"
	"github.com/recall-agent/portfolio-rebalancer/pkg/reporting"
)

const agentName = "portfolio-rebalancer"

func main() {
	var (
		configFile = flag.String("config", "portfolio", "portfolio config file (bare names resolve under configs/)")
		envFile    = flag.String("env", ".env", "env file to load before reading the environment")
		once       = flag.Bool("once", false, "run a single rebalance cycle and exit")
		ledgerOut  = flag.String("ledger", "", "write the trade ledger to this file on exit (.csv or .xlsx)")
		logDir     = flag.String("log-dir", "logs", "directory for session log files")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	env := config.LoadEnv()

	if env.Exchange.Name != "bybit" && env.Venue.APIKey == "" {
		log.Fatal("RECALL_API_KEY is required")
	}

	fileLog, err := logger.NewLogger(agentName, *logDir)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLog.Close()

	// Venue client behind a circuit breaker. Bybit spot is the
	// alternative execution backend when configured.
	var backend venue.Venue
	if env.Exchange.Name == "bybit" {
		if env.Exchange.APIKey == "" || env.Exchange.APISecret == "" {
			log.Fatal("BYBIT_API_KEY and BYBIT_API_SECRET are required for the bybit backend")
		}
		backend = exchange.NewBybitVenue(env.Exchange.APIKey, env.Exchange.APISecret, env.Exchange.Demo)
	} else {
		backend = venue.NewRecallClient(env.Venue.APIKey, env.Sandbox(), env.Venue.Timeout)
	}
	breaker := safety.NewBreaker(env.Exchange.Name, safety.BreakerConfig{})
	breaker.SetStateChangeCallback(func(from, to safety.BreakerState) {
		fileLog.Warning("Venue circuit breaker %s -> %s", from, to)
	})
	executor := venue.NewGuardedExecutor(backend, breaker)

	provider := marketdata.NewCoingeckoClient(env.MarketData.CoingeckoAPIKey, env.MarketData.Timeout)

	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionSize:    cfg.Risk.MaxPositionSize,
		MinPositionSize:    cfg.Risk.MinPositionSize,
		StopLossPercentage: cfg.Risk.StopLossPercentage,
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		HaltDailyLoss:      cfg.Risk.HaltDailyLoss,
		MinSuccessRate:     cfg.Risk.MinSuccessRate,
		MinSampleSize:      cfg.Risk.MinSampleSize,
		MaxTradesPerHour:   cfg.Risk.MaxTradesPerHour,
		MinTradeInterval:   cfg.Risk.MinTradeInterval,
		HaltCooldown:       cfg.Risk.HaltCooldown,
	})

	var notifier notifications.Notifier = notifications.Noop{}
	if env.Notifications.TelegramToken != "" {
		notifier = notifications.NewTelegramNotifier(env.Notifications.TelegramToken, env.Notifications.TelegramChatID)
	} else {
		log.Println("Telegram notifications disabled (no token configured)")
	}

	var adv advisor.Advisor
	if env.Advisor.OpenAIAPIKey != "" {
		adv = advisor.NewOpenAIAdvisor(env.Advisor.OpenAIAPIKey, env.Advisor.Model)
	} else {
		log.Println("Strategy review disabled (no OpenAI API key configured)")
	}

	health := monitoring.NewHealthChecker()
	console := reporting.NewDefaultConsoleReporter()

	eng, err := engine.New(engine.Deps{
		Config:   cfg,
		Provider: provider,
		Executor: executor,
		Account:  backend,
		Risk:     riskMgr,
		Advisor:  adv,
		Log:      fileLog,
		Console:  console,
		Health:   health,
		Notifier: notifier,
	})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := backend.Ping(pingCtx); err != nil {
		fileLog.Warning("Venue health check failed: %v", err)
	} else {
		health.SetVenueConnected(true)
	}
	pingCancel()

	console.PrintStartup(agentName, env.Environment, cfg.Targets)
	fileLog.Info("Agent starting in %s mode, log at %s", env.Environment, fileLog.GetLogPath())

	go serveMonitoring(env, health, riskMgr, fileLog)

	if *once {
		runCtx, runCancel := context.WithTimeout(ctx, 10*time.Minute)
		defer runCancel()
		if err := eng.RunCycle(runCtx, engine.TriggerManual); err != nil {
			fileLog.Error("Cycle failed: %v", err)
			writeLedger(*ledgerOut, riskMgr, fileLog)
			os.Exit(1)
		}
		writeLedger(*ledgerOut, riskMgr, fileLog)
		return
	}

	scheduler := engine.NewScheduler(eng, cfg.Schedule, fileLog)
	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			fileLog.Error("Scheduler stopped: %v", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()

	writeLedger(*ledgerOut, riskMgr, fileLog)
	if err := notifier.SendAlert("info", "Rebalancer stopped"); err != nil {
		fileLog.Warning("shutdown alert delivery failed: %v", err)
	}
	log.Println("Rebalancer stopped")
}

// writeLedger dumps the 24h trade ledger to CSV or Excel depending on
// the file extension.
func writeLedger(path string, riskMgr *risk.Manager, fileLog *logger.Logger) {
	if path == "" {
		return
	}
	records := riskMgr.Records()
	if len(records) == 0 {
		return
	}

	var writer reporting.LedgerWriter
	if filepath.Ext(path) == ".xlsx" {
		writer = reporting.NewDefaultExcelReporter()
	} else {
		writer = reporting.NewDefaultCSVReporter()
	}
	if err := writer.WriteLedger(records, path); err != nil {
		fileLog.Error("Failed to write trade ledger: %v", err)
		return
	}
	fileLog.Info("Trade ledger written to %s (%d records)", path, len(records))
}

func serveMonitoring(env *config.EnvConfig, health *monitoring.HealthChecker, riskMgr *risk.Manager, fileLog *logger.Logger) {
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	// Administrative halt reset: a deliberate operator action, hence
	// POST only.
	healthMux.HandleFunc("/risk/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		riskMgr.Reset()
		monitoring.SetHalted(false)
		fileLog.Risk("Halt manually reset via admin endpoint")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "risk state reset to NORMAL")
	})
	go func() {
		addr := fmt.Sprintf(":%d", env.Monitoring.HealthPort)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", env.Monitoring.PrometheusPort)
	if err := http.ListenAndServe(addr, monitoring.NewMetricsHandler()); err != nil {
		log.Printf("Prometheus server error: %v", err)
	}
}
