// Command lens serves the options strategy grid: it groups brokerage
// positions into recognized strategies, reconciles them against open exit
// orders, and exposes the result over the dashboard API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optlens/optlens/internal/auth"
	"github.com/optlens/optlens/internal/broker"
	"github.com/optlens/optlens/internal/config"
	"github.com/optlens/optlens/internal/dashboard"
	"github.com/optlens/optlens/internal/engine"
	"github.com/optlens/optlens/internal/mock"
	"github.com/optlens/optlens/internal/retry"
)

const version = "1.0.0"

func main() {
	var configPath string
	var printGrid bool
	var showVersion bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&printGrid, "print", false, "Print the grouped grid once and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("lens %s\n", version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", cfg.Environment.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	cache := auth.NewCache(cfg.Auth.CachePath, cfg.TokenTTL())
	manager := auth.NewManager(cfg.Broker.ConsumerKey, cfg.Broker.ConsumerSecret, cfg.Broker.Sandbox, cache)

	logger.Infof("Starting strategy grid in %s mode", cfg.Environment.Mode)
	if cfg.IsPaper() {
		manager.WithBrokerFactory(func(_, _ string) broker.Broker {
			return mock.NewBroker(time.Now())
		})
		manager.OpenPaperSession()
		logger.Info("Paper mode, serving the sample portfolio")
	} else {
		manager.WithBrokerFactory(func(accessToken, accessSecret string) broker.Broker {
			api := broker.NewEtradeAPI(cfg.Broker.ConsumerKey, cfg.Broker.ConsumerSecret,
				accessToken, accessSecret, cfg.Broker.Sandbox)
			return broker.NewCircuitBreakerBroker(retry.NewBroker(api, logger))
		})
	}

	engineCfg := engine.Config{
		ProfitTargets: cfg.Engine.ProfitTargets,
		PriceTick:     cfg.Engine.PriceTick,
	}

	if printGrid {
		if err := printOnce(manager, os.Stdout); err != nil {
			logger.Fatalf("Failed to print grid: %v", err)
		}
		return
	}

	srv := dashboard.NewServer(dashboard.Config{
		Port:   cfg.Dashboard.Port,
		Engine: engineCfg,
	}, manager, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Dashboard.OpenBrowser {
		url := fmt.Sprintf("http://127.0.0.1:%d", cfg.Dashboard.Port)
		go func() {
			time.Sleep(time.Second)
			if err := openBrowser(url); err != nil {
				logger.WithError(err).Warnf("Failed to open %s", url)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}

	logger.Info("Server stopped")
}

// printOnce writes the grouped grid for the first account to w and returns.
// It needs an existing session: paper mode always has one, live mode reuses
// the cached login from a previous dashboard authentication.
func printOnce(manager *auth.Manager, w *os.File) error {
	sessionID, ok := manager.Restore()
	if !ok {
		return errors.New("no cached login; start the server and authenticate first")
	}
	b, err := manager.Broker(sessionID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts, err := b.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}
	if len(accounts) == 0 {
		return errors.New("no accounts available")
	}
	key := accounts[0].AccountIDKey

	positions, err := b.GetPositions(ctx, key)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	orders, err := b.GetOpenOrders(ctx, key)
	if err != nil {
		return fmt.Errorf("fetching orders: %w", err)
	}

	rows := engine.BuildRows(positions)
	annotated, unmatched := engine.Reconcile(rows, orders, time.Now())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tSYMBOL\tSPEC\tQTY\tDTE\tCOST\tVALUE\tGAIN\tGAIN%\tEXIT")
	for _, row := range annotated {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2f\t%.2f\t%.2f\t%.1f\t%s\n",
			row.StrategyName, row.BaseSymbol, row.Spec, row.Quantity, dteString(row.DTE),
			row.TotalCost, row.MarketValue, row.TotalGain, row.TotalGainPct, row.ExitLabel)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if n := len(engine.ExplodeUnmatched(unmatched)); n > 0 {
		fmt.Fprintf(w, "\n%d open order leg(s) not tied to a position row\n", n)
	}
	return nil
}

func dteString(dte *int) string {
	if dte == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *dte)
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
