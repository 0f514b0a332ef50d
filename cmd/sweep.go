package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepSessionID int64

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single sweep and exit",
	Long:  "Fetches search pages once, emits every new matching listing, and prints the sweep summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sweep, err := env.Orch.RunOnce(ctx, sweepSessionID)
		if err != nil {
			return err
		}

		s := sweep.Stats
		zap.L().Info("sweep finished",
			zap.String("sweep_id", sweep.ID),
			zap.Int("pages", s.PagesScanned),
			zap.Int("cards", s.CardsSeen),
			zap.Int("emitted", s.Emitted),
			zap.Int("duplicates", s.Duplicates),
			zap.Int("rejected", s.Rejected),
			zap.Int("quota_remaining", s.QuotaRemaining))

		fmt.Printf("sweep %s: %d pages, %d cards, %d emitted, %d duplicates, %d rejected, %d quota left\n",
			sweep.ID, s.PagesScanned, s.CardsSeen, s.Emitted, s.Duplicates, s.Rejected, s.QuotaRemaining)
		return nil
	},
}

func init() {
	sweepCmd.Flags().Int64Var(&sweepSessionID, "session", 1, "session id to run the sweep under")
	rootCmd.AddCommand(sweepCmd)
}
