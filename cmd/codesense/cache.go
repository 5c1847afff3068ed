package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/raaihank/codesense/internal/cache"
	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("response cache is disabled (set cache.enabled)")

var (
	cacheOutput string

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the Redis response cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache key count for this Redis database",
		RunE:  runCacheStats,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached explanation",
		RunE:  runCacheClear,
	}
)

func init() {
	cacheStatsCmd.Flags().StringVarP(&cacheOutput, "output", "o", "text", "Output format: text or json")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

// connectCache fails instead of skipping when the cache is off or unreachable.
func connectCache() (*cache.ResponseCache, error) {
	if !cfg.Cache.Enabled {
		return nil, errCacheDisabled
	}
	return cache.NewResponseCache(cfg.Cache, log)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := connectCache()
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	return writeCacheStats(cmd.OutOrStdout(), cacheOutput, stats)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := connectCache()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
	return nil
}

func writeCacheStats(w io.Writer, format string, stats *cache.CacheStats) error {
	switch format {
	case "json":
		return json.NewEncoder(w).Encode(stats)
	case "", "text":
		_, err := fmt.Fprintf(w, "Keys in database: %d\n", stats.TotalKeys)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
