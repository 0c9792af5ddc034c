package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cellarfs/cellarfs/internal/cfg"
	"github.com/cellarfs/cellarfs/internal/logger"
	"github.com/cellarfs/cellarfs/internal/storage"
)

var optimizeViper = viper.New()

var optimizeCmd = &cobra.Command{
	Use:   "optimize --db PATH",
	Short: "Reclaim space freed by deleted inodes and blocks",
	Long: `optimize runs SQLite's VACUUM against the database, rewriting it to
reclaim the space pages freed by deletes leave behind. It requires
exclusive access to the database, the same as mount does.`,
	RunE: runOptimize,
}

func init() {
	bindCommonFlags(optimizeCmd, optimizeViper)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(optimizeViper)
	if err != nil {
		return err
	}

	key, err := cfg.ResolveKey(c)
	if err != nil {
		return fmt.Errorf("resolving key: %w", err)
	}
	gateway, err := storage.Open(c.DBPath, key)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer gateway.Close()

	logger.Infof("vacuuming %s", c.DBPath)
	return gateway.Vacuum()
}
