package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local entity cache",
}

var cacheClearYes bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached entities to reclaim storage",
	Long: `Delete all cached contatos, processos, and mensagens and compact
the database. Pending actions and drafts are kept; they are the data that
cannot be re-fetched from the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()

		before, err := st.QuotaContext(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading storage usage: %v\n", err)
			os.Exit(1)
		}

		if !cacheClearYes {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Clear the local cache (%s)?", formatBytes(before.Usage))).
				Description("Pending actions and drafts are kept.").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println("Aborted")
				return
			}
		}

		if err := st.ClearCache(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing cache: %v\n", err)
			os.Exit(1)
		}

		after, err := st.QuotaContext(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading storage usage: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Cache cleared: %s -> %s\n", ui.RenderPass("✓"), formatBytes(before.Usage), formatBytes(after.Usage))
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearYes, "yes", false, "skip the confirmation prompt")

	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
