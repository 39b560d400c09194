package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/store"
	"github.com/escritoriolabs/lexsync/internal/ui"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Manage form drafts",
	Long: `Form drafts survive restarts and offline periods. Each form keeps
at most one draft, stored under the form's name.`,
}

var draftSaveCmd = &cobra.Command{
	Use:   "save <form>",
	Short: "Save a draft for a form (content from stdin)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		if len(content) == 0 {
			fmt.Fprintf(os.Stderr, "Error: draft content is empty\n")
			os.Exit(1)
		}

		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		key := schema.DraftKey(args[0])
		if err := st.SaveDraft(context.Background(), key, content); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving draft: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Draft saved for %s\n", ui.RenderPass("✓"), args[0])
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show <form>",
	Short: "Print a form's draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		key := schema.DraftKey(args[0])
		content, err := st.GetDraft(context.Background(), key)
		if errors.Is(err, store.ErrDraftNotFound) {
			fmt.Fprintf(os.Stderr, "No draft for %s\n", args[0])
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading draft: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(content)
	},
}

var draftRmCmd = &cobra.Command{
	Use:   "rm <form>",
	Short: "Delete a form's draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		key := schema.DraftKey(args[0])
		if err := st.DeleteDraft(context.Background(), key); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting draft: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Draft removed for %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	draftCmd.AddCommand(draftSaveCmd)
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftRmCmd)
	rootCmd.AddCommand(draftCmd)
}
