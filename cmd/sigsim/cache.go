package main

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/sigsim/internal/config"
	"github.com/newthinker/sigsim/internal/logger"
	"github.com/newthinker/sigsim/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the historical data cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached series files",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [coin...]",
	Short: "Delete cached series, all of them when no coin is given",
	RunE:  runCachePurge,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*config.Config, archive.Storage, *zap.Logger, error) {
	log := logger.Must(debug)

	cfg, err := loadConfig(log)
	if err != nil {
		return nil, nil, log, err
	}
	storage, err := archive.New(cfg.Cache)
	if err != nil {
		return nil, nil, log, fmt.Errorf("creating cache storage: %w", err)
	}
	return cfg, storage, log, nil
}

// cachedSeries returns the stored paths that match the cache name template
func cachedSeries(ctx context.Context, storage archive.Storage, cacheName string) ([]string, error) {
	pattern := strings.ReplaceAll(cacheName, config.CoinPlaceholder, "*")

	all, err := storage.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}

	var matched []string
	for _, p := range all {
		if ok, _ := path.Match(pattern, p); ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// cacheNames returns the cache paths of coins, spelled exactly as in the signal file
func cacheNames(cacheName string, coins []string) []string {
	paths := make([]string, 0, len(coins))
	for _, coin := range coins {
		paths = append(paths, strings.ReplaceAll(cacheName, config.CoinPlaceholder, coin))
	}
	return paths
}

func runCacheList(cmd *cobra.Command, args []string) error {
	cfg, storage, log, err := openCache()
	defer log.Sync()
	if err != nil {
		return err
	}

	paths, err := cachedSeries(cmd.Context(), storage, cfg.Data.CacheName)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	cfg, storage, log, err := openCache()
	defer log.Sync()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var paths []string
	if len(args) == 0 {
		if paths, err = cachedSeries(ctx, storage, cfg.Data.CacheName); err != nil {
			return err
		}
	} else {
		paths = cacheNames(cfg.Data.CacheName, args)
	}

	for _, p := range paths {
		if err := storage.Delete(ctx, p); err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				log.Warn("not cached", zap.String("path", p))
				continue
			}
			return fmt.Errorf("deleting %s: %w", p, err)
		}
		fmt.Printf("deleted %s\n", p)
	}
	return nil
}
