package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/metrics"
	"github.com/fortiblox/x1-token/pkg/types"
)

// storeRefreshInterval is how often the accounts gauge is resampled.
const storeRefreshInterval = 15 * time.Second

func newServeMetricsCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics and health endpoints for the account store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serveMetrics(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to metrics.addr)")
	return cmd
}

func (a *app) serveMetrics(ctx context.Context, addr string) error {
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.NewMetrics()
	health := metrics.NewHealthChecker()
	health.RegisterCheck("accounts_store", storeCheck(db))

	server := metrics.NewServer(
		metrics.WithAddr(addr),
		metrics.WithMetrics(m),
		metrics.WithHealthChecker(health),
		metrics.WithLogger(a.log),
	)
	if err := server.Start(); err != nil {
		return err
	}
	m.SetAccountsCount(db.GetAccountsCount())
	health.SetReady(true)

	ticker := time.NewTicker(storeRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutting down metrics server")
			health.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		case <-ticker.C:
			m.SetAccountsCount(db.GetAccountsCount())
			a.log.Debug("accounts gauge refreshed", zap.Uint64("accounts", db.GetAccountsCount()))
		}
	}
}

// storeCheck reports the store unhealthy when a point read fails.
func storeCheck(db accounts.AccountsDB) metrics.HealthCheckFunc {
	return func(context.Context) error {
		_, err := db.GetAccount(types.NativeMintID)
		return err
	}
}
