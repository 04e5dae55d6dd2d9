package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/config"
)

// app is the state shared by every subcommand once the root command has
// loaded configuration.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	cmd := &cobra.Command{
		Use:           "x1-token",
		Short:         "SPL token ledger",
		Version:       fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildTime),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a config file (yaml, json or toml)")
	flags.String("data-dir", "", "account store directory, or :memory:")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("general.data_dir", flags.Lookup("data-dir"))
	_ = a.v.BindPFlag("general.log_level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newExecCmd(a),
		newAccountCmd(a),
		newUiAmountCmd(),
		newAmountCmd(),
		newSnapshotCmd(a),
		newServeMetricsCmd(a),
	)
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// openStore opens the configured account store. The caller closes it.
func (a *app) openStore() (accounts.AccountsDB, error) {
	if a.cfg.UseMemoryStore() {
		a.log.Debug("using in-memory account store")
		return accounts.NewMemoryDB(), nil
	}

	dir := filepath.Join(a.cfg.General.DataDir, "accounts")
	if !a.cfg.General.InMemory {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := accounts.OpenBadgerDB(accounts.BadgerOptions{
		Dir:      dir,
		InMemory: a.cfg.General.InMemory,
		Logger:   a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}
	a.log.Debug("opened account store", zap.String("dir", dir), zap.Uint64("accounts", db.GetAccountsCount()))
	return db, nil
}
