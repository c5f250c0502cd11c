package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/eventscout/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the page cache",
	Long: `Inspect and maintain the on-disk cache of fetched event pages and
adherence verdicts. The cache directory is set by cache.dir.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and expired entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := diskCache()
		if err != nil {
			return err
		}
		u, err := disk.Usage()
		if err != nil {
			return fmt.Errorf("read cache: %w", err)
		}
		printUsage(cmd.OutOrStdout(), u)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired and unreadable cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := diskCache()
		if err != nil {
			return err
		}
		n, err := disk.Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %d entries\n", color.GreenString("✓"), n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := diskCache()
		if err != nil {
			return err
		}
		if err := disk.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Cache cleared\n", color.GreenString("✓"))
		return nil
	},
}

// diskCache opens the configured disk layer
func diskCache() (*cache.DiskCache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Dir == "" {
		return nil, fmt.Errorf("no cache directory configured (cache.dir)")
	}
	return cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL), nil
}

func printUsage(w io.Writer, u cache.Usage) {
	fmt.Fprintf(w, "Entries:  %d\n", u.Entries)
	expired := fmt.Sprintf("%d", u.Expired)
	if u.Expired > 0 {
		expired = color.YellowString("%d (run 'eventscout cache prune')", u.Expired)
	}
	fmt.Fprintf(w, "Expired:  %s\n", expired)
	fmt.Fprintf(w, "Size:     %.1f KiB\n", float64(u.Bytes)/1024)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd, cacheClearCmd)
}
