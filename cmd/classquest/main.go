// Command classquest is the admin CLI: schema migrations, backups, the legacy
// browser-storage import, hosted sync and API key hashing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/classquest/classroom-hub/config"
	"github.com/classquest/classroom-hub/internal/bootstrap"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands.
type app struct {
	configPath string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "classquest",
		Short: "Classroom Quest Hub administration",
		Long: `Administer a Classroom Quest Hub installation.

Available commands:
  db       - Apply, roll back or inspect PostgreSQL migrations
  backup   - Export or import a JSON snapshot of the store
  legacy   - Import a browser storage dump
  sync     - Copy the local store into the hosted database
  apikey   - Hash API keys for the HTTP server
  catalog  - Validate a starter catalog file
  rules    - Show the level curve`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: ./config/config.yaml or ./config.yaml)")

	root.AddCommand(
		a.dbCmd(),
		a.backupCmd(),
		a.legacyCmd(),
		a.syncCmd(),
		a.apikeyCmd(),
		a.catalogCmd(),
		a.rulesCmd(),
	)
	return root
}

// load reads the configuration and builds the logger once.
func (a *app) load() (*config.Config, *zap.Logger, error) {
	if a.cfg != nil {
		return a.cfg, a.log, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return cfg, log, nil
}

// open loads the configuration and opens the runtime.
func (a *app) open(ctx context.Context, opts bootstrap.Options) (*bootstrap.Runtime, error) {
	cfg, log, err := a.load()
	if err != nil {
		return nil, err
	}
	return bootstrap.Open(ctx, cfg, log, opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
