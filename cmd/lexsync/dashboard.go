package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the dashboard feed status",
	Long: `Check the dashboard feed served by a running daemon and print how
to connect to it. The feed broadcasts connection state, sync progress,
queue depth, storage usage, and live entity updates.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.DashboardPort)

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get("http://" + addr + "/health")
		if err != nil {
			fmt.Printf("\n%s No daemon feed at %s\n", ui.RenderWarn("⚠"), addr)
			fmt.Printf("   Start one with 'lexsync daemon'\n\n")
			os.Exit(1)
		}
		defer resp.Body.Close()

		var health struct {
			Status  string `json:"status"`
			Clients int    `json:"clients"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding health response: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s Dashboard feed is up\n\n", ui.RenderPass("✓"))
		fmt.Printf("Endpoint: ws://%s/ws\n", addr)
		fmt.Printf("Clients: %d\n\n", health.Clients)
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
