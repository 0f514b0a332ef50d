package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steinik-group/rentscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rentscout",
	Short: "Apartment listing discovery pipeline",
	Long:  "Sweeps Cian search results inside the Third Transport Ring, extracts and filters listings, deduplicates against the seen set, and emits new matches to Notion or CSV.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
