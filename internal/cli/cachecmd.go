package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/cache"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/config"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/logging"
)

func newCacheCmd(global *globalFlags) *cobra.Command {
	var cacheDir string
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the verification cache",
	})
	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", config.Default().CacheDir, "verification cache directory")

	openStore := func(cmd *cobra.Command) (*cache.Store, error) {
		cfg, err := config.Load(global.configPath)
		if err != nil {
			return nil, err
		}
		dir := cfg.CacheDir
		if cmd.Flags().Changed("cache-dir") {
			dir = cacheDir
		}
		return cache.Open(cache.Options{
			Dir:        dir,
			MaxEntries: cfg.CacheMaxEntries,
			Logger:     logging.Discard(),
		})
	}

	cmd.AddCommand(silenceUsageAndErrors(&cobra.Command{
		Use:   "stats",
		Short: "Print the number of cached verification results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Len()
			if err != nil {
				return err
			}
			fmt.Printf("cached results: %d\n", n)
			return nil
		},
	}))

	cmd.AddCommand(silenceUsageAndErrors(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached verification result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("cache cleared")
			return nil
		},
	}))

	return cmd
}
