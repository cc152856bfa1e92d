package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"folio/internal/common"
	"folio/internal/kavita"
	"folio/internal/registry"
	"folio/internal/storage/badger"
)

var (
	configFile string

	// Global state shared by subcommands, set in PersistentPreRunE
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Client toolkit for self-hosted media servers",
	Long:  `Folio manages connections to self-hosted media servers (comics/manga/books), with per-server sessions, reading progress, and cross-server search.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Startup sequence: load config, initialize logger, print banner
		paths := []string{}
		if configFile != "" {
			paths = append(paths, configFile)
		} else if _, err := os.Stat("folio.toml"); err == nil {
			paths = append(paths, "folio.toml")
		}

		var err error
		config, err = common.LoadFromFiles(paths...)
		if err != nil {
			return err
		}

		logger = common.InitLogger(config)
		common.PrintBanner(common.GetVersion())
		return nil
	},
	SilenceUsage: true,
}

// openRegistry opens the badger-backed stores and loads the server registry.
// The returned closer releases the database.
func openRegistry(ctx context.Context) (*registry.Registry, func(), error) {
	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, nil, err
	}

	credStore := badger.NewCredentialStorage(db, logger)
	serverStore := badger.NewServerStorage(db, logger)

	reg, err := registry.NewRegistry(ctx, serverStore, credStore, logger,
		registry.WithClientOptions(
			kavita.WithTimeout(time.Duration(config.Client.TimeoutSeconds)*time.Second),
			kavita.WithRateLimit(config.Client.RequestsPerSecond),
			kavita.WithEnrichmentConcurrency(config.Client.EnrichmentConcurrency),
		),
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return reg, func() { db.Close() }, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(librariesCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
