package main

import (
	"fmt"

	"github.com/openucra/ucra-go/internal/cache"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show render cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(cfg.Cache)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			dir, _ := cacheDir(cfg.Cache)
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, field("dir", dir))
			fmt.Fprintln(w, field("enabled", cfg.Cache.Enabled))
			if st, ok := store.Level(cache.LevelDisk); ok {
				fmt.Fprintln(w, field(cache.LevelDisk.String(), st.String()))
			}
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached render",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(cfg.Cache)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			before := store.Stats()
			if err := store.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d cached renders\n", keyword("Removed"), before.Items)
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
