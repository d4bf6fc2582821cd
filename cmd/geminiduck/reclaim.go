package main

import (
	"github.com/spf13/cobra"

	"github.com/duckworks/geminiduck/internal/config"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/store"
)

// reclaimCmd runs one sweep by hand, for hosts that run the server rarely.
var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Delete expired assets and history rows once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		st, err := store.New(cfg.ScratchDir)
		if err != nil {
			return err
		}
		removed, err := st.Reclaim(cfg.AssetTTL)
		if err != nil {
			return err
		}
		printStatus("Assets removed", "%d (older than %s)", removed, cfg.AssetTTL)

		if cfg.HistoryDisabled {
			printStatus("History", "disabled")
			return nil
		}
		hist, err := history.Open(cfg.HistoryDBPath)
		if err != nil {
			return err
		}
		defer hist.Close()
		purged, err := hist.Purge(cfg.HistoryTTL)
		if err != nil {
			return err
		}
		printStatus("History rows purged", "%d (older than %s)", purged, cfg.HistoryTTL)
		return nil
	},
}
