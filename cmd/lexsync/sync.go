package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/rest"
	syncer "github.com/escritoriolabs/lexsync/internal/sync"
	"github.com/escritoriolabs/lexsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending-action queue now",
	Long: `Replay queued actions against the CRM server in the order they
were created. Acked actions are removed; failed actions stay queued with
their retry count incremented and are retried on the next drain.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		q := queue.New(st, logger, nil)
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)

		ctx := context.Background()

		count, err := q.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting queue: %v\n", err)
			os.Exit(1)
		}
		if count == 0 {
			fmt.Printf("%s Nothing to sync\n", ui.RenderPass("✓"))
			return
		}

		if err := client.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s Server unreachable: %v\n", ui.RenderFail("✗"), err)
			fmt.Fprintf(os.Stderr, "   %d action(s) stay queued\n", count)
			os.Exit(1)
		}

		fmt.Printf("%s Syncing %d action(s) to %s...\n", ui.RenderAccent("→"), count, cfg.ServerURL)
		start := time.Now()

		coord := syncer.New(q, client, nil, nil, logger)
		result, err := coord.SyncNow(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		if result.Success {
			fmt.Printf("%s Sync complete in %v (%d action(s))\n", ui.RenderPass("✓"), elapsed, result.Attempted)
			return
		}

		fmt.Printf("%s Sync finished with failures in %v\n", ui.RenderWarn("⚠"), elapsed)
		fmt.Printf("   Attempted: %d\n", result.Attempted)
		fmt.Printf("   Failed: %d\n", len(result.Errors))
		for _, actionErr := range result.Errors {
			fmt.Printf("   %s %s: %s\n", ui.RenderFail("✗"), actionErr.ActionID, actionErr.Err)
		}
		os.Exit(1)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queue, and storage status",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)
		online := client.Ping(ctx) == nil

		pending, err := st.CountActions(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting queue: %v\n", err)
			os.Exit(1)
		}

		quota, err := st.QuotaContext(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading storage usage: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s  %s\n\n", ui.RenderOnlineBadge(online), ui.RenderMuted(cfg.ServerURL))
		fmt.Printf("Queue: %s", ui.RenderQueueBadge(pending))
		if pending > 0 {
			fmt.Printf(" %d action(s) waiting", pending)
		}
		fmt.Println()
		fmt.Printf("Storage: %s", formatBytes(quota.Usage))
		if quota.Quota > 0 {
			fmt.Printf(" of %s", formatBytes(quota.Quota))
			if quota.Exceeded() {
				fmt.Printf("  %s", ui.RenderFail("QUOTA EXCEEDED"))
			}
		}
		fmt.Println()
		fmt.Printf("Database: %s\n\n", cfg.DBPath)

		if !online && pending > 0 {
			fmt.Printf("%s Offline: queued actions sync automatically when the server is reachable\n\n", ui.RenderWarn("⚠"))
		}
	},
}

func formatBytes(n int64) string {
	switch {
	case n > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n > 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
