package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/rest"
	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/ui"
)

var configuracoesCmd = &cobra.Command{
	Use:   "configuracoes",
	Short: "Manage office settings on the server",
}

var configuracoesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the office settings",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)

		settings, err := client.GetConfiguracoes(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Server unreachable: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("\nEscritório: %s\n", settings.NomeEscritorio)
		if settings.EmailNotificacoes != "" {
			fmt.Printf("Notificações: %s\n", settings.EmailNotificacoes)
		}
		fmt.Printf("Notificar prazos: %v", settings.NotificarPrazos)
		if settings.NotificarPrazos {
			fmt.Printf(" (%d dias de antecedência)", settings.DiasAntecedencia)
		}
		fmt.Println()
		fmt.Println()
	},
}

var (
	configuracoesNome  string
	configuracoesEmail string
	configuracoesDias  int
)

var configuracoesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the office settings",
	Long: `Update the office settings on the server. When the server is
unreachable the update is queued and applied on the next sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		if configuracoesNome == "" && configuracoesEmail == "" && !cmd.Flags().Changed("dias-antecedencia") {
			fmt.Fprintf(os.Stderr, "Error: nothing to update\n")
			os.Exit(1)
		}

		cfg := loadConfig()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)
		ctx := context.Background()

		// Start from the server's current values when reachable.
		settings, err := client.GetConfiguracoes(ctx)
		online := err == nil
		if !online {
			settings = &schema.Configuracoes{}
		}

		if configuracoesNome != "" {
			settings.NomeEscritorio = configuracoesNome
		}
		if configuracoesEmail != "" {
			settings.EmailNotificacoes = configuracoesEmail
		}
		if cmd.Flags().Changed("dias-antecedencia") {
			settings.DiasAntecedencia = configuracoesDias
			settings.NotificarPrazos = configuracoesDias > 0
		}

		if online {
			if err := client.UpdateConfiguracoes(ctx, settings); err != nil {
				fmt.Fprintf(os.Stderr, "Error updating settings: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Settings updated\n", ui.RenderPass("✓"))
			return
		}

		// Offline: queue the update for the next drain.
		st := openStore(cfg)
		defer st.Close()

		payload, err := json.Marshal(settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding settings: %v\n", err)
			os.Exit(1)
		}

		q := queue.New(st, log.New(os.Stderr, "[queue] ", log.LstdFlags), nil)
		id, err := q.Enqueue(ctx, &schema.PendingAction{
			Method:       schema.MethodUpdate,
			ResourceType: schema.ResourceConfiguracoes,
			Payload:      payload,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error queueing update: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Offline: update queued as %s, syncs when the server is reachable\n", ui.RenderWarn("⚠"), shortID(id))
	},
}

func init() {
	configuracoesSetCmd.Flags().StringVar(&configuracoesNome, "nome", "", "office name")
	configuracoesSetCmd.Flags().StringVar(&configuracoesEmail, "email", "", "notification email")
	configuracoesSetCmd.Flags().IntVar(&configuracoesDias, "dias-antecedencia", 0, "days before a prazo to notify (0 disables)")

	configuracoesCmd.AddCommand(configuracoesShowCmd)
	configuracoesCmd.AddCommand(configuracoesSetCmd)
	rootCmd.AddCommand(configuracoesCmd)
}
