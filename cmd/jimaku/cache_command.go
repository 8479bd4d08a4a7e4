package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jimaku/internal/logging"
	"jimaku/internal/transcache"
)

func newCacheCommand(cctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Transcript cache utilities",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(cctx))
	cacheCmd.AddCommand(newCacheClearCommand(cctx))

	return cacheCmd
}

func (c *commandContext) openCacheStore() (*transcache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := transcache.Open(cfg.CacheDBPath(), logging.NewNop())
	if err != nil {
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}
	return store, nil
}

func newCacheStatsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show transcript cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openCacheStore()
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count cached transcripts: %w", err)
			}
			cfg, _ := cctx.ensureConfig()
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				[][]string{
					{"path", cfg.CacheDBPath()},
					{"cached transcripts", strconv.FormatInt(count, 10)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newCacheClearCommand(cctx *commandContext) *cobra.Command {
	var mediaPath string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openCacheStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int64
			if mediaPath != "" {
				removed, err = store.ClearMedia(cmd.Context(), mediaPath)
			} else {
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("clear transcript cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached transcripts\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaPath, "media", "", "Only clear entries for this media file")
	return cmd
}
