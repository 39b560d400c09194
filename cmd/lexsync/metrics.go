package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/escritoriolabs/lexsync/internal/rest"
	"github.com/escritoriolabs/lexsync/internal/ui"
)

var metricsChart bool

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show dashboard metrics from the server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout)
		ctx := context.Background()

		metrics, err := client.DashboardMetrics(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Server unreachable: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("\nContatos: %d (%d novos)\n", metrics.TotalContatos, metrics.ContatosNovos)
		fmt.Printf("Processos ativos: %d\n", metrics.ProcessosAtivos)
		if metrics.PrazosProximos > 0 {
			fmt.Printf("Prazos próximos: %s\n", ui.RenderWarn(fmt.Sprintf("%d", metrics.PrazosProximos)))
		} else {
			fmt.Printf("Prazos próximos: 0\n")
		}

		if !metricsChart {
			fmt.Println()
			return
		}

		points, err := client.ChartData(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching chart data: %v\n", err)
			os.Exit(1)
		}

		var max float64
		for _, p := range points {
			if p.Value > max {
				max = p.Value
			}
		}
		fmt.Println()
		for _, p := range points {
			width := 0
			if max > 0 {
				width = int(p.Value / max * 40)
			}
			bar := ""
			for i := 0; i < width; i++ {
				bar += "█"
			}
			fmt.Printf("%12s  %s %.0f\n", p.Label, ui.RenderAccent(bar), p.Value)
		}
		fmt.Println()
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsChart, "chart", false, "include chart data")
	rootCmd.AddCommand(metricsCmd)
}
