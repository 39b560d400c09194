// Command lexsync is the offline-first sync client for the law-firm CRM.
// It keeps a local SQLite cache of contatos and processos, queues writes
// made while offline, and drains them to the server when connectivity
// returns.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/config"
	"github.com/escritoriolabs/lexsync/internal/store"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "lexsync",
	Short: "Offline-first sync client for the CRM",
	Long: `lexsync keeps a local cache of CRM data and a durable queue of
pending writes. Work offline; changes are replayed to the server in order
when the connection returns.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "settings directory (default: .lexsync or ~/.lexsync)")
}

// loadConfig reads settings, honoring --config-dir.
func loadConfig() *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if configDir != "" {
		cfg, err = config.LoadFrom(configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openStore opens the local database and ensures the schema exists.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DBPath, cfg.QuotaBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}
	return st
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
