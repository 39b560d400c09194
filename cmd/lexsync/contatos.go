package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/rest"
	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/store"
	"github.com/escritoriolabs/lexsync/internal/ui"
)

var contatosCmd = &cobra.Command{
	Use:   "contatos",
	Short: "Browse contatos (offline-first)",
	Long: `Read contatos from the server when reachable, falling back to the
local cache when offline. Successful reads refresh the cache.`,
}

var contatosLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List contatos",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)

		contatos, fromCache := fetchContatos(ctx, client, st)
		if len(contatos) == 0 {
			fmt.Printf("%s No contatos\n", ui.RenderMuted("∅"))
			return
		}

		if fromCache {
			fmt.Printf("%s Offline: showing cached data\n\n", ui.RenderWarn("⚠"))
		}
		for _, c := range contatos {
			fmt.Printf("%s  %s", shortID(c.ID), c.Nome)
			if c.Status != "" {
				fmt.Printf("  [%s]", c.Status)
			}
			if c.Email != "" {
				fmt.Printf("  %s", ui.RenderMuted(c.Email))
			}
			fmt.Println()
		}
	},
}

var contatosShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a contato and its messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)
		id := args[0]

		contato, err := client.GetContato(ctx, id)
		if err == nil {
			_ = st.UpsertContato(ctx, contato)
			if msgs, err := client.ListMensagens(ctx, id); err == nil {
				_ = st.UpsertMensagens(ctx, msgs)
			}
		} else {
			contato, err = st.GetContato(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: contato %s not on server or in cache\n", id)
				os.Exit(1)
			}
			fmt.Printf("%s Offline: showing cached data\n\n", ui.RenderWarn("⚠"))
		}

		fmt.Printf("%s\n", contato.Nome)
		if contato.Email != "" {
			fmt.Printf("  Email: %s\n", contato.Email)
		}
		if contato.Telefone != "" {
			fmt.Printf("  Telefone: %s\n", contato.Telefone)
		}
		if contato.Status != "" {
			fmt.Printf("  Status: %s\n", contato.Status)
		}

		msgs, err := st.ListMensagens(ctx, id, 0)
		if err != nil || len(msgs) == 0 {
			return
		}
		fmt.Printf("\nMensagens:\n")
		for _, m := range msgs {
			marker := "←"
			if m.Direcao == "enviada" {
				marker = "→"
			}
			fmt.Printf("  %s %s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), marker, m.Conteudo)
		}
	},
}

// fetchContatos prefers the server and falls back to the cache. The second
// return reports whether the data came from the cache.
func fetchContatos(ctx context.Context, client *rest.Client, st *store.Store) ([]*schema.Contato, bool) {
	contatos, err := client.ListContatos(ctx)
	if err == nil {
		for _, c := range contatos {
			if cacheErr := st.UpsertContato(ctx, c); cacheErr != nil {
				break // quota refusals apply to every cache write
			}
		}
		return contatos, false
	}

	cached, cacheErr := st.ListContatos(ctx, store.ContatosFilter{})
	if cacheErr != nil {
		fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", cacheErr)
		os.Exit(1)
	}
	return cached, true
}

var processosCmd = &cobra.Command{
	Use:   "processos",
	Short: "Browse processos (offline-first)",
}

var processosLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List processos",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)

		processos, err := client.ListProcessos(ctx)
		fromCache := false
		if err == nil {
			for _, p := range processos {
				if cacheErr := st.UpsertProcesso(ctx, p); cacheErr != nil {
					break
				}
			}
		} else {
			processos, err = st.ListProcessos(ctx, "", 0)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", err)
				os.Exit(1)
			}
			fromCache = true
		}

		if len(processos) == 0 {
			fmt.Printf("%s No processos\n", ui.RenderMuted("∅"))
			return
		}
		if fromCache {
			fmt.Printf("%s Offline: showing cached data\n\n", ui.RenderWarn("⚠"))
		}
		for _, p := range processos {
			fmt.Printf("%s  %s  %s", shortID(p.ID), p.Numero, p.Titulo)
			if p.Status != "" {
				fmt.Printf("  [%s]", p.Status)
			}
			if p.Prazo != nil {
				fmt.Printf("  prazo %s", p.Prazo.Local().Format("2006-01-02"))
			}
			fmt.Println()
		}
	},
}

func init() {
	contatosCmd.AddCommand(contatosLsCmd)
	contatosCmd.AddCommand(contatosShowCmd)
	rootCmd.AddCommand(contatosCmd)

	processosCmd.AddCommand(processosLsCmd)
	rootCmd.AddCommand(processosCmd)
}
