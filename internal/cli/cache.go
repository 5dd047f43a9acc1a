package cli

import (
	"fmt"

	"github.com/ppiankov/shepard/internal/cache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheCmd manages the oracle response cache
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the oracle response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached oracle response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared cache: %s\n", c.Dir())
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired or unreadable cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		removed, err := c.Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d entries from %s\n", removed, c.Dir())
		return nil
	},
}

func openCache() (*cache.DiskCache, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL), nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
