// Package cli implements the tally-replica CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/tally-replica/internal/config"
	"github.com/rcliao/tally-replica/internal/ingest"
	"github.com/rcliao/tally-replica/internal/store"
)

var (
	dbPath     string
	configPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tally-replica",
	Short: "Replicate Tally accounting exports",
	Long:  "Receives Tally XML exports, normalizes them into category row sets and keeps the latest snapshot in chunked SQLite storage.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $TALLY_REPLICA_DB, config db_path or ~/.tally-replica/replica.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $TALLY_REPLICA_CONFIG or ~/.tally-replica/config.yaml)")
}

func getConfigPath() (string, bool) {
	if configPath != "" {
		return configPath, true
	}
	if env := os.Getenv(config.EnvConfig); env != "" {
		return env, true
	}
	return config.DefaultPath(), false
}

// loadConfig reads the config file and applies the --db flag on top.
func loadConfig() (*config.Config, error) {
	path, required := getConfigPath()
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	cfg.ApplyLogging()
	return cfg, nil
}

// openService wires the SQLite backend, the chunked store and the ingest
// service from cfg. The caller closes the returned KV.
func openService(cfg *config.Config) (*ingest.Service, *store.LargeStore, *store.SQLiteKV, error) {
	kv, err := store.NewSQLiteKV(cfg.DBPath, cfg.MaxValueSize)
	if err != nil {
		return nil, nil, nil, err
	}
	ls := store.NewLargeStore(kv, store.LargeOptions{
		Prefix:    cfg.KeyPrefix,
		LegacyKey: cfg.Legacy(),
		ChunkSize: cfg.ChunkSize,
	})
	svc, err := ingest.New(ls, ingest.Options{ObjectName: cfg.ObjectName, Mode: cfg.Mode()})
	if err != nil {
		kv.Close()
		return nil, nil, nil, err
	}
	return svc, ls, kv, nil
}

// mustOpen loads the config and opens the service, exiting on failure.
func mustOpen() (*config.Config, *ingest.Service, *store.LargeStore, *store.SQLiteKV) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	svc, ls, kv, err := openService(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	return cfg, svc, ls, kv
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
