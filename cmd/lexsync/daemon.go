package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/escritoriolabs/lexsync/internal/config"
	"github.com/escritoriolabs/lexsync/internal/daemon"
	"github.com/escritoriolabs/lexsync/internal/dashboard"
	"github.com/escritoriolabs/lexsync/internal/ui"
)

var daemonNoFeed bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon (foreground)",
	Long: `Run the background process that owns the local database.

The daemon:
  1. Probes the CRM server and tracks online/offline transitions
  2. Holds the WebSocket live channel and caches pushed entities
  3. Drains the pending-action queue when connectivity returns
  4. Ingests action files from the outbox spool
  5. Serves the local dashboard feed

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		logger := log.New(daemonLogWriter(cfg), "[daemon] ", log.LstdFlags)

		var feed *dashboard.Server
		if !daemonNoFeed {
			feed = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: logger,
			})
			if err := feed.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard feed: %v\n", err)
				os.Exit(1)
			}
			defer feed.Stop()
		}

		daemonConfig := &daemon.Config{
			ServerURL:      cfg.ServerURL,
			WebSocketURL:   cfg.WebSocketURL,
			SpoolDir:       cfg.SpoolDir,
			RequestTimeout: cfg.RequestTimeout,
			ProbeInterval:  cfg.ProbeInterval,
			FlushInterval:  cfg.FlushInterval,
			QuotaInterval:  cfg.QuotaInterval,
			Backoff:        cfg.Backoff.Policy(),
			Logger:         logger,
		}

		d, err := daemon.New(st, feed, daemonConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Starting lexsync daemon\n", ui.RenderAccent("→"))
		fmt.Printf("   Server: %s\n", cfg.ServerURL)
		fmt.Printf("   Database: %s\n", cfg.DBPath)
		if cfg.SpoolDir != "" {
			fmt.Printf("   Spool: %s\n", cfg.SpoolDir)
		}
		if feed != nil {
			fmt.Printf("   Dashboard: ws://%s/ws\n", feed.GetAddr())
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

// daemonLogWriter returns the daemon log destination: a rotating file when
// configured, stderr otherwise.
func daemonLogWriter(cfg *config.Config) io.Writer {
	if cfg.Log.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonNoFeed, "no-dashboard", false, "run without the dashboard feed")
	rootCmd.AddCommand(daemonCmd)
}
