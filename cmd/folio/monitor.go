package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"folio/internal/registry"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Periodically probe every registered server's health endpoint",
	Long:  `Runs a scheduled connectivity sweep across all registered servers, logging each server as up or down. The schedule is configured under [monitor] in the config file.`,
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(config.Monitor.Schedule, func() {
		sweep(ctx, reg)
	})
	if err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", config.Monitor.Schedule, err)
	}

	// Run one sweep immediately so the first report doesn't wait a full interval
	sweep(ctx, reg)

	scheduler.Start()
	defer scheduler.Stop()

	fmt.Printf("Monitoring %d server(s) on schedule %q. Press Ctrl+C to stop.\n", len(reg.Servers()), config.Monitor.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Monitor stopped")
	return nil
}

// sweep probes each registered server once
func sweep(ctx context.Context, reg *registry.Registry) {
	for _, entry := range reg.AllClients() {
		if entry.Client.TestConnection(ctx) {
			logger.Info().
				Str("server_id", entry.ServerID).
				Str("name", entry.Server.Name).
				Str("url", entry.Server.URL).
				Msg("Server is up")
		} else {
			logger.Warn().
				Str("server_id", entry.ServerID).
				Str("name", entry.Server.Name).
				Str("url", entry.Server.URL).
				Msg("Server is down")
		}
	}
}
