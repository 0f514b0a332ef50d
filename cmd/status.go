package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steinik-group/rentscout/internal/quota"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sweeps and today's quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		total, err := env.Store.CountSeen(ctx)
		if err != nil {
			return err
		}

		qc := quota.New(env.Store, cfg.Quota.DailyCap)
		remaining, err := qc.Remaining(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("seen listings: %d\n", total)
		fmt.Printf("quota %s: %d of %d left\n\n", qc.Day(), remaining, qc.Cap())

		sweeps, err := env.Store.LastSweeps(ctx, statusLimit)
		if err != nil {
			return err
		}
		if len(sweeps) == 0 {
			fmt.Println("no sweeps recorded")
			return nil
		}

		for _, s := range sweeps {
			finished := "running"
			if s.FinishedAt != nil {
				finished = s.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  session=%d  started=%s  finished=%s  pages=%d emitted=%d dup=%d rejected=%d\n",
				s.ID, s.SessionID, s.StartedAt.Format("2006-01-02 15:04:05"), finished,
				s.Stats.PagesScanned, s.Stats.Emitted, s.Stats.Duplicates, s.Stats.Rejected)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of sweeps to show")
	rootCmd.AddCommand(statusCmd)
}
