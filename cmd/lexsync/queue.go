package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the pending-action queue",
}

var queueLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List queued actions in sync order",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		actions, err := st.ListActions(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing queue: %v\n", err)
			os.Exit(1)
		}

		if len(actions) == 0 {
			fmt.Printf("%s Queue is empty\n", ui.RenderPass("✓"))
			return
		}

		fmt.Printf("\n%d pending action(s), oldest first:\n\n", len(actions))
		for i, a := range actions {
			target := string(a.ResourceType)
			if a.ResourceID != "" {
				target += "/" + a.ResourceID
			}
			fmt.Printf("%2d. %s %s %s\n", i+1, shortID(a.ID), a.Method, target)
			fmt.Printf("    queued %s", a.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if a.RetryCount > 0 {
				fmt.Printf("  %s", ui.RenderWarn(fmt.Sprintf("%d failed attempt(s)", a.RetryCount)))
			}
			fmt.Println()
			if a.LastError != "" {
				fmt.Printf("    last error: %s\n", ui.RenderMuted(a.LastError))
			}
		}
		fmt.Println()
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry failed actions by draining the queue",
	Long: `Failed actions keep their place in the queue and are retried in
order on the next drain. This is the same drain 'lexsync sync' runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		syncCmd.Run(cmd, args)
	},
}

var pruneBefore string
var pruneYes bool

var queuePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete queued actions older than a cutoff",
	Long: `Delete pending actions created before the given cutoff. The cutoff
accepts natural language:

  lexsync queue prune --before "last monday"
  lexsync queue prune --before "3 days ago" --yes

Pruned actions are gone for good; the server never sees them.`,
	Run: func(cmd *cobra.Command, args []string) {
		if pruneBefore == "" {
			fmt.Fprintf(os.Stderr, "Error: --before is required\n")
			os.Exit(1)
		}

		w := when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)

		result, err := w.Parse(pruneBefore, time.Now())
		if err != nil || result == nil {
			fmt.Fprintf(os.Stderr, "Error: could not understand %q as a date\n", pruneBefore)
			os.Exit(1)
		}
		cutoff := result.Time

		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()
		actions, err := st.ListActions(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing queue: %v\n", err)
			os.Exit(1)
		}

		var matching int
		for _, a := range actions {
			if a.CreatedAt.Before(cutoff) {
				matching++
			}
		}
		if matching == 0 {
			fmt.Printf("%s No actions queued before %s\n", ui.RenderPass("✓"), cutoff.Local().Format("2006-01-02 15:04"))
			return
		}

		if !pruneYes {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %d action(s) queued before %s?", matching, cutoff.Local().Format("2006-01-02 15:04"))).
				Description("Pruned actions are never sent to the server.").
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

		pruned, err := st.PruneActionsBefore(ctx, cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error pruning queue: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Pruned %d action(s)\n", ui.RenderPass("✓"), pruned)
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	queuePruneCmd.Flags().StringVar(&pruneBefore, "before", "", "cutoff, natural language accepted (\"last week\")")
	queuePruneCmd.Flags().BoolVar(&pruneYes, "yes", false, "skip the confirmation prompt")

	queueCmd.AddCommand(queueLsCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queuePruneCmd)
	rootCmd.AddCommand(queueCmd)
}
